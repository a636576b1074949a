package orders

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the machine-readable class of a status update failure.
type Kind string

const (
	KindRateLimited   Kind = "RATE_LIMITED"
	KindOrderNotFound Kind = "ORDER_NOT_FOUND"
	KindInvalidStatus Kind = "INVALID_STATUS"
	KindUnknownStatus Kind = "UNKNOWN_STATUS"
	KindInternal      Kind = "INTERNAL_FAILURE"
)

// MsgInternal is the only text callers see for unexpected faults.
const MsgInternal = "Something went wrong while updating the order status."

// Error is a status update failure with caller-safe message and metadata.
type Error struct {
	Kind     Kind
	Message  string
	Metadata map[string]string
	Allowed  []string // InvalidStatus only
	Cause    error    // never rendered by Error()
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error of the same kind, so errors.Is(err, ErrOrderNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrRateLimited   = &Error{Kind: KindRateLimited}
	ErrOrderNotFound = &Error{Kind: KindOrderNotFound}
	ErrInvalidStatus = &Error{Kind: KindInvalidStatus}
	ErrUnknownStatus = &Error{Kind: KindUnknownStatus}
	ErrInternal      = &Error{Kind: KindInternal}
)

func RateLimited() *Error {
	return &Error{Kind: KindRateLimited, Message: "Rate limit exceeded. Please try again after a minute."}
}

func OrderNotFound(incrementID string) *Error {
	return &Error{
		Kind:     KindOrderNotFound,
		Message:  fmt.Sprintf("Order with increment ID %q does not exist.", incrementID),
		Metadata: map[string]string{"order_increment_id": incrementID},
	}
}

func InvalidStatus(status string, allowed []string) *Error {
	return &Error{
		Kind:     KindInvalidStatus,
		Message:  fmt.Sprintf("Invalid status %q. Allowed statuses: %s", status, strings.Join(allowed, ", ")),
		Metadata: map[string]string{"status": status},
		Allowed:  append([]string(nil), allowed...),
	}
}

func UnknownStatus(status string) *Error {
	return &Error{
		Kind:     KindUnknownStatus,
		Message:  fmt.Sprintf("Status %q is not configured.", status),
		Metadata: map[string]string{"status": status},
	}
}

// Internal collapses cause into the generic caller-facing failure.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: MsgInternal, Cause: cause}
}

// KindOf returns the kind of err, or KindInternal for anything that is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsDomain reports whether err is a known, caller-safe failure.
func IsDomain(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind != KindInternal
}
