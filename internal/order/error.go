package order

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidTargetStatus  = errors.New("invalid target status")
	ErrTerminalState        = errors.New("order is already completed or cancelled")
	ErrNonForwardTransition = errors.New("status can only move forward")

	ErrEmptyOrder         = errors.New("order has no items")
	ErrInvalidQuantity    = errors.New("quantity must be greater than zero")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrMissingCustomer    = errors.New("guest orders need a customer name")
	ErrForbidden          = errors.New("forbidden")
)

// TransitionError is returned by RequestTransition for every rejected request.
// It unwraps to one of the transition sentinels above.
type TransitionError struct {
	OrderID uint
	From    Status
	To      Status
	Err     error
}

func (e *TransitionError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("order %d: transition to %q: %v", e.OrderID, e.To, e.Err)
	}
	return fmt.Sprintf("order %d: transition %s -> %s: %v", e.OrderID, e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}
