// Package fixedpoint provides checked integer arithmetic and decimal scales
// for token amounts. Nothing in here wraps: every operation either returns
// the exact result or one of the errors below.
package fixedpoint

import "errors"

var (
	// ErrOverflow is returned when a result does not fit in 64 bits.
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrUnderflow is returned when a subtraction would go below zero.
	ErrUnderflow = errors.New("arithmetic underflow")
	// ErrZeroBalance is returned on division by zero.
	ErrZeroBalance = errors.New("zero balance divisor")
	// ErrInvalidPrecision is returned when a value needs more fractional
	// digits than its decimal scale supports, or scales are incompatible.
	ErrInvalidPrecision = errors.New("invalid precision")
)
