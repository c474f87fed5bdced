package match

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOrder       = errors.New("the order is invalid")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrMissingPrice       = errors.New("limit order requires a positive price")
	ErrInvalidSide        = errors.New("unknown order side")
	ErrInvalidOrderType   = errors.New("unknown order type")
	ErrInvalidParam       = errors.New("the param is invalid")
	ErrInvariantViolation = errors.New("order book invariant violated")
	ErrHalted             = errors.New("order book is halted")
	ErrTimeout            = errors.New("timeout")
	ErrShutdown           = errors.New("matching engine is shutting down")
	ErrNotFound           = errors.New("not found")
	ErrSequenceGap        = errors.New("book log sequence gap")
)

// ValidationError is returned when an order is rejected at acceptance.
// The book is never touched by a rejected order.
type ValidationError struct {
	Reason error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order: %v", e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidOrder
}

// InvariantViolation signals corrupted book state. It is never recoverable:
// the matcher halts once one is observed.
type InvariantViolation struct {
	Detail string
}

func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Detail
}

func (e *InvariantViolation) Is(target error) bool {
	return target == ErrInvariantViolation
}
