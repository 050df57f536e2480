// Package curve implements the constant-product pricing curve, the
// basis-point fee model and share accounting for a two-asset pool. All
// functions are pure: they take reserves by value and return amounts.
package curve

import (
	"errors"
	"fmt"

	"ammcore/internal/fixedpoint"
)

// Kind identifies a curve failure.
type Kind uint8

const (
	KindInvalidPrecision Kind = iota + 1
	KindOverflow
	KindUnderflow
	KindInvalidFeeAmount
	KindInsufficientBalance
	KindZeroBalance
	KindSlippageLimitExceeded
	KindInvalidAmount
)

func (k Kind) String() string {
	switch k {
	case KindInvalidPrecision:
		return "invalid precision"
	case KindOverflow:
		return "overflow"
	case KindUnderflow:
		return "underflow"
	case KindInvalidFeeAmount:
		return "invalid fee amount"
	case KindInsufficientBalance:
		return "insufficient balance"
	case KindZeroBalance:
		return "zero balance"
	case KindSlippageLimitExceeded:
		return "slippage limit exceeded"
	case KindInvalidAmount:
		return "invalid amount"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Error is a curve failure with its kind and detail.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return "curve: " + e.Kind.String()
	}
	return "curve: " + e.Kind.String() + ": " + e.Msg
}

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

var (
	ErrInvalidPrecision      = &Error{Kind: KindInvalidPrecision}
	ErrOverflow              = &Error{Kind: KindOverflow}
	ErrUnderflow             = &Error{Kind: KindUnderflow}
	ErrInvalidFeeAmount      = &Error{Kind: KindInvalidFeeAmount}
	ErrInsufficientBalance   = &Error{Kind: KindInsufficientBalance}
	ErrZeroBalance           = &Error{Kind: KindZeroBalance}
	ErrSlippageLimitExceeded = &Error{Kind: KindSlippageLimitExceeded}
	ErrInvalidAmount         = &Error{Kind: KindInvalidAmount}
)

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the curve kind from err, if any.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

// fromMath converts fixed-point arithmetic failures into curve errors.
func fromMath(err error, op string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, fixedpoint.ErrOverflow):
		return newError(KindOverflow, "%s", op)
	case errors.Is(err, fixedpoint.ErrUnderflow):
		return newError(KindUnderflow, "%s", op)
	case errors.Is(err, fixedpoint.ErrZeroBalance):
		return newError(KindZeroBalance, "%s", op)
	case errors.Is(err, fixedpoint.ErrInvalidPrecision):
		return newError(KindInvalidPrecision, "%s: %v", op, err)
	default:
		return err
	}
}
