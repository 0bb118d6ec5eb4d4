package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies a Firestore failure by what the caller can do about it.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindNotFound: the addressed document does not exist.
	KindNotFound
	// KindContention: another writer changed the data first; reload and retry.
	KindContention
	// KindUnavailable: the backend is temporarily unable to serve; retry later.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindContention:
		return "contention"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is a Firestore failure annotated with the operation that produced it.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func kindFromStatus(err error) Kind {
	switch status.Code(err) {
	case codes.NotFound:
		return KindNotFound
	case codes.Aborted, codes.AlreadyExists, codes.FailedPrecondition:
		return KindContention
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal:
		return KindUnavailable
	default:
		return KindUnknown
	}
}

// WrapError annotates err with op and its Kind. Cancellation is returned as the context error so
// callers can match it with errors.Is. An error wrapped before keeps its original operation.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled {
		return context.Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) || status.Code(err) == codes.DeadlineExceeded {
		return context.DeadlineExceeded
	}
	var wrapped *Error
	if errors.As(err, &wrapped) {
		return err
	}
	return &Error{Op: op, Kind: kindFromStatus(err), Err: err}
}

// KindOf reports the Kind of err, looking through wrapping.
func KindOf(err error) Kind {
	var wrapped *Error
	if errors.As(err, &wrapped) {
		return wrapped.Kind
	}
	return kindFromStatus(err)
}

// IsNotFound reports whether err means a missing document.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}
