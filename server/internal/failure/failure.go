package failure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of a failed acquisition.
type Kind string

const (
	InvalidLocator    Kind = "invalid_locator"
	AlreadyInProgress Kind = "already_in_progress"
	Unreachable       Kind = "unreachable"
	RemoteRejected    Kind = "remote_rejected"
	NotFound          Kind = "not_found"
	StorageFailure    Kind = "storage_failure"
	Cancelled         Kind = "cancelled"
	CommitFailure     Kind = "commit_failure"
)

// Reason is the text shown to the user for a failure kind.
func (k Kind) Reason() string {
	switch k {
	case InvalidLocator:
		return "bad link: not a recognised video URL"
	case AlreadyInProgress:
		return "already downloading this video"
	case Unreachable:
		return "network problem: download service unreachable"
	case RemoteRejected:
		return "network problem: download service rejected the request"
	case NotFound:
		return "network problem: video not found"
	case StorageFailure:
		return "storage problem: could not write to device storage"
	case Cancelled:
		return "download cancelled"
	case CommitFailure:
		return "storage problem: could not save to library"
	default:
		return "unexpected error"
	}
}

// HTTPStatus maps a kind onto the status code used by the api surfaces.
func (k Kind) HTTPStatus() int {
	switch k {
	case InvalidLocator:
		return http.StatusBadRequest
	case AlreadyInProgress:
		return http.StatusConflict
	case NotFound:
		return http.StatusNotFound
	case Unreachable, RemoteRejected:
		return http.StatusBadGateway
	case StorageFailure:
		return http.StatusInsufficientStorage
	case Cancelled:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// Error carries the failure kind along with the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Op)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, failure.New(k, "", nil))
// works as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the failure kind of err.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	if errors.Is(err, context.Canceled) {
		return Cancelled, true
	}
	return "", false
}

// FromStatus classifies a non 2xx backend response.
func FromStatus(op string, code int) *Error {
	err := fmt.Errorf("backend answered %d %s", code, http.StatusText(code))
	if code == http.StatusNotFound {
		return New(NotFound, op, err)
	}
	return New(RemoteRejected, op, err)
}

// FromTransport classifies an error returned by an http round trip.
func FromTransport(op string, err error) *Error {
	if errors.Is(err, context.Canceled) {
		return New(Cancelled, op, err)
	}
	return New(Unreachable, op, err)
}

// FromFile classifies an error produced while touching the filesystem.
// Permission, quota and disk full errors all end up as StorageFailure.
func FromFile(op string, err error) *Error {
	if errors.Is(err, context.Canceled) {
		return New(Cancelled, op, err)
	}
	return New(StorageFailure, op, err)
}
