package ledger

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Category is the normalized failure taxonomy for ledger calls.
type Category string

const (
	// CategoryTimeout means the call did not finish within its deadline.
	CategoryTimeout Category = "timeout"
	// CategoryUnavailable covers connection failures and 5xx responses.
	CategoryUnavailable Category = "unavailable"
	// CategoryCircuitOpen means the call was not attempted because the breaker is open.
	CategoryCircuitOpen Category = "circuit_open"
	// CategoryNotFound means the ledger has no such account or transaction.
	CategoryNotFound Category = "not_found"
	// CategoryRejected means the ledger refused a transaction.
	CategoryRejected Category = "rejected"
	// CategoryBadRequest means the request was malformed before reaching consensus.
	CategoryBadRequest Category = "bad_request"
	CategoryInternal   Category = "internal"
)

// Error wraps a failed ledger call.
type Error struct {
	Category   Category
	Op         string
	Message    string
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("ledger %s [%s]: %s: %v", e.Op, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("ledger %s [%s]: %s", e.Op, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// NewError builds a categorized ledger error.
func NewError(category Category, op, message string, underlying error) *Error {
	return &Error{Category: category, Op: op, Message: message, Underlying: underlying}
}

// CategoryOf extracts the category of err. Context deadline and net timeouts
// are reported as CategoryTimeout even when not wrapped in *Error.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	var le *Error
	if errors.As(err, &le) {
		return le.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return CategoryTimeout
	}
	return CategoryInternal
}

// IsNotFound reports whether err means the ledger has no such record.
func IsNotFound(err error) bool {
	return CategoryOf(err) == CategoryNotFound
}

// IsUnavailable reports whether err is transient infrastructure trouble
// (timeout, connection failure, open breaker).
func IsUnavailable(err error) bool {
	switch CategoryOf(err) {
	case CategoryTimeout, CategoryUnavailable, CategoryCircuitOpen:
		return true
	default:
		return false
	}
}
