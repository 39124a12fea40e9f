package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures so callers can map them to
// synchronous responses or deferred logging.
type ErrorKind string

const (
	KindInvalidRequest     ErrorKind = "invalid_request"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindAuctionNotActive   ErrorKind = "auction_not_active"
	KindStaleBid           ErrorKind = "stale_bid"
	KindInsufficientBudget ErrorKind = "insufficient_budget"
	KindAlreadySold        ErrorKind = "already_sold"
	KindAlreadyUnsold      ErrorKind = "already_unsold"
	KindNotFound           ErrorKind = "not_found"
	KindQueueUnavailable   ErrorKind = "queue_unavailable"
	KindStoreUnavailable   ErrorKind = "store_unavailable"
)

// Error is a classified pipeline error.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates a classified error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates a classified error wrapping a cause.
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the ErrorKind from err, or empty string if err is not a
// classified error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
