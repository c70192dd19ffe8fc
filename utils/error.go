package utils

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError rejects malformed or business-rule-violating input.
// The message is safe to show to the client.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InsufficientStockError carries the quantity that was actually available at the
// moment of the check, read under row lock, so the client can retry with a
// smaller amount without another round trip.
type InsufficientStockError struct {
	WarehouseId int
	Requested   decimal.Decimal
	Available   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock in warehouse %d: requested %s, available %s",
		e.WarehouseId, e.Requested.String(), e.Available.String())
}

// InvalidStateTransitionError rejects a workflow move the state machine does not allow.
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}

// ConcurrencyConflictError is returned after retries on lock contention are exhausted.
type ConcurrencyConflictError struct {
	Attempts int
	Err      error
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("operation aborted after %d attempts due to concurrent updates: %v", e.Attempts, e.Err)
}

func (e *ConcurrencyConflictError) Unwrap() error { return e.Err }
