package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind classifies failures by the pipeline stage that produced them
type Kind string

const (
	KindNetwork    Kind = "network"
	KindValidation Kind = "validation"
	KindStorage    Kind = "storage"
	KindCheckpoint Kind = "checkpoint"
	KindConfig     Kind = "config"
	KindUnknown    Kind = "unknown"
)

// Error is a pipeline error with kind and context information
type Error struct {
	Kind      Kind
	Op        string
	StationID string
	Code      int
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s error", e.Kind)
	if e.Op != "" {
		fmt.Fprintf(&b, " during %s", e.Op)
	}
	if e.StationID != "" {
		fmt.Fprintf(&b, " (station %s)", e.StationID)
	}
	if e.Code != 0 {
		fmt.Fprintf(&b, " (code %d)", e.Code)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Network creates a network error. code is the HTTP status, 0 when the
// request never got a response.
func Network(op string, code int, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Code: code, Err: err}
}

// Validation creates a validation error
func Validation(op string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

// Storage creates a storage error
func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Op: op, Err: err}
}

// Checkpoint creates a checkpoint error
func Checkpoint(op string, err error) *Error {
	return &Error{Kind: KindCheckpoint, Op: op, Err: err}
}

// Config creates a configuration error
func Config(op string, err error) *Error {
	return &Error{Kind: KindConfig, Op: op, Err: err}
}

// WithStation returns a copy of the error tagged with a station id
func (e *Error) WithStation(stationID string) *Error {
	cp := *e
	cp.StationID = stationID
	return &cp
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	if e.Kind != KindNetwork {
		return false
	}
	return IsRetryableStatusCode(e.Code)
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // no response
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
