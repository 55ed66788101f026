package chat

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the taxonomy buckets callers are
// expected to branch on.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindPermissionDenied
	KindNetworkUnavailable
	KindServerTimeout
	KindServerBusy
	KindInvalidParameter
	KindConflict
	KindStorage
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindNetworkUnavailable:
		return "network_unavailable"
	case KindServerTimeout:
		return "server_timeout"
	case KindServerBusy:
		return "server_busy"
	case KindInvalidParameter:
		return "invalid_parameter"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage"
	case KindBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Error is the error type returned by all chatkit operations that can fail
// for a reason a caller may want to branch on.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "store.insert_message"
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Errf builds an *Error with a formatted cause.
func Errf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// WrapErr attaches kind and op to an underlying error. Returns nil if err
// is nil.
func WrapErr(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from an error chain. Unclassified errors report
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Transient reports whether the error is a transport failure worth retrying
// once connectivity returns.
func Transient(err error) bool {
	switch KindOf(err) {
	case KindNetworkUnavailable, KindServerTimeout, KindServerBusy:
		return true
	}
	return false
}
