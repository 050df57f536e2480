package chain

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"ammcore/internal/model"
)

const erc20ABIJSON = `[
  {"inputs": [{"internalType": "address", "name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

const erc20SymbolBytes32ABIJSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

var (
	erc20ABI     abi.ABI
	erc20ABIOnce sync.Once
	erc20ABIErr  error

	symbolBytes32ABI     abi.ABI
	symbolBytes32ABIOnce sync.Once
	symbolBytes32ABIErr  error
)

// ERC20ABI returns the parsed balanceOf/decimals/symbol ABI.
func ERC20ABI() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABI, erc20ABIErr
}

func symbolBytes32Instance() (abi.ABI, error) {
	symbolBytes32ABIOnce.Do(func() {
		symbolBytes32ABI, symbolBytes32ABIErr = abi.JSON(strings.NewReader(erc20SymbolBytes32ABIJSON))
	})
	return symbolBytes32ABI, symbolBytes32ABIErr
}

// TokenReaderConfig controls retries and caching.
type TokenReaderConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
	CacheSize    int
}

// TokenReader reads ERC20 balances and metadata. Decimals never change for a
// deployed token, so they are cached.
type TokenReader struct {
	caller   ContractCaller
	retry    retryPolicy
	decimals *lru.Cache[common.Address, uint8]
	logger   *zap.Logger
}

func NewTokenReader(cfg TokenReaderConfig, caller ContractCaller, logger *zap.Logger) (*TokenReader, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	cache, err := lru.New[common.Address, uint8](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create decimals cache: %w", err)
	}
	return &TokenReader{
		caller:   caller,
		retry:    newRetryPolicy(cfg.MaxRetries, cfg.RetryBackoff, logger),
		decimals: cache,
		logger:   logger,
	}, nil
}

// Decimals returns the token's decimals().
func (r *TokenReader) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	if d, ok := r.decimals.Get(token); ok {
		return d, nil
	}
	parsed, err := ERC20ABI()
	if err != nil {
		return 0, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := r.call(ctx, token, parsed, "decimals", nil)
	if err != nil {
		return 0, err
	}
	d, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals unexpected type %T", values[0])
	}
	r.decimals.Add(token, d)
	return d, nil
}

// Symbol returns the token symbol, accepting bytes32 symbols of older
// tokens. It returns "" when neither form decodes.
func (r *TokenReader) Symbol(ctx context.Context, token common.Address) string {
	parsed, err := ERC20ABI()
	if err == nil {
		if values, err := r.call(ctx, token, parsed, "symbol", nil); err == nil {
			if s, ok := values[0].(string); ok {
				return s
			}
		}
	}
	legacy, err := symbolBytes32Instance()
	if err != nil {
		return ""
	}
	values, err := r.call(ctx, token, legacy, "symbol", nil)
	if err != nil {
		r.logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
		return ""
	}
	if v, ok := values[0].([32]byte); ok {
		return string(bytes.TrimRight(v[:], "\x00"))
	}
	return ""
}

// BalanceOf returns holder's balance at block, latest when block is nil.
func (r *TokenReader) BalanceOf(ctx context.Context, token, holder common.Address, block *big.Int) (model.TokenBalance, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return model.TokenBalance{}, fmt.Errorf("parse erc20 abi: %w", err)
	}
	decimals, err := r.Decimals(ctx, token)
	if err != nil {
		return model.TokenBalance{}, err
	}
	values, err := r.call(ctx, token, parsed, "balanceOf", block, holder)
	if err != nil {
		return model.TokenBalance{}, err
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return model.TokenBalance{}, fmt.Errorf("balanceOf unexpected type %T", values[0])
	}
	out := model.TokenBalance{Token: token, Holder: holder, Decimals: decimals, Balance: bal}
	if block != nil {
		out.Block = block.Uint64()
	}
	return out, nil
}

func (r *TokenReader) call(ctx context.Context, token common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &token, Data: data}

	var resp []byte
	err = r.retry.do(ctx, method, func(ctx context.Context) error {
		var callErr error
		resp, callErr = r.caller.CallContract(ctx, msg, block)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s return size %d", method, len(values))
	}
	return values, nil
}
