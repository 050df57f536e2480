package amm

import (
	"errors"
	"fmt"

	"ammcore/internal/curve"
)

// Code is the error kind reported by pool operations.
type Code uint8

const (
	CodePoolLocked Code = iota + 1
	CodeInvalidAuthority
	CodeInvalidAmount
	CodeInvalidPrecision
	CodeOverflow
	CodeUnderflow
	CodeInvalidFee
	CodeInsufficientBalance
	CodeZeroBalance
	CodeSlippageExceeded
)

var codeNames = map[Code]string{
	CodePoolLocked:          "PoolLocked",
	CodeInvalidAuthority:    "InvalidAuthority",
	CodeInvalidAmount:       "InvalidAmount",
	CodeInvalidPrecision:    "InvalidPrecision",
	CodeOverflow:            "Overflow",
	CodeUnderflow:           "Underflow",
	CodeInvalidFee:          "InvalidFee",
	CodeInsufficientBalance: "InsufficientBalance",
	CodeZeroBalance:         "ZeroBalance",
	CodeSlippageExceeded:    "SlippageExceeded",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", uint8(c))
}

// Error is an operation failure. Operations fail with exactly one Error and
// leave the pool untouched.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Msg
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

var (
	ErrPoolLocked          = &Error{Code: CodePoolLocked}
	ErrInvalidAuthority    = &Error{Code: CodeInvalidAuthority}
	ErrInvalidAmount       = &Error{Code: CodeInvalidAmount}
	ErrInvalidPrecision    = &Error{Code: CodeInvalidPrecision}
	ErrOverflow            = &Error{Code: CodeOverflow}
	ErrUnderflow           = &Error{Code: CodeUnderflow}
	ErrInvalidFee          = &Error{Code: CodeInvalidFee}
	ErrInsufficientBalance = &Error{Code: CodeInsufficientBalance}
	ErrZeroBalance         = &Error{Code: CodeZeroBalance}
	ErrSlippageExceeded    = &Error{Code: CodeSlippageExceeded}
)

func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

var curveCodes = map[curve.Kind]Code{
	curve.KindInvalidPrecision:      CodeInvalidPrecision,
	curve.KindOverflow:              CodeOverflow,
	curve.KindUnderflow:             CodeUnderflow,
	curve.KindInvalidFeeAmount:      CodeInvalidFee,
	curve.KindInsufficientBalance:   CodeInsufficientBalance,
	curve.KindZeroBalance:           CodeZeroBalance,
	curve.KindSlippageLimitExceeded: CodeSlippageExceeded,
	curve.KindInvalidAmount:         CodeInvalidAmount,
}

// FromCurveError maps a curve failure onto its operation code. Errors that
// did not come from the curve are returned unchanged.
func FromCurveError(err error) error {
	if err == nil {
		return nil
	}
	var ce *curve.Error
	if !errors.As(err, &ce) {
		return err
	}
	code, ok := curveCodes[ce.Kind]
	if !ok {
		return err
	}
	return &Error{Code: code, Msg: ce.Msg}
}

// CodeOf returns the operation code carried by err, if any.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}
