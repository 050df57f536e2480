package chain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// revertErrorCode is the JSON-RPC error code nodes return for a reverted
// eth_call.
const revertErrorCode = 3

// retryPolicy retries eth_call failures with exponential backoff.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

func newRetryPolicy(maxRetries int, baseDelay time.Duration, logger *zap.Logger) retryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return retryPolicy{maxRetries: maxRetries, baseDelay: baseDelay, logger: logger}
}

// do runs fn until it succeeds, fails permanently or runs out of retries.
func (p retryPolicy) do(ctx context.Context, method string, fn func(context.Context) error) error {
	delay := p.baseDelay
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Join(err, ctxErr)
		}
		if permanent(err) || attempt > p.maxRetries {
			return err
		}

		p.logger.Debug("retrying eth_call",
			zap.String("method", method),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
		delay *= 2
	}
}

// permanent reports errors that repeating the same call cannot fix.
func permanent(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == revertErrorCode {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}
