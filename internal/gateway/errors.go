package gateway

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindExtract Kind = "extract"
	KindCluster Kind = "cluster"
	KindRelate  Kind = "relate"
	KindMatch   Kind = "match"
)

var (
	ErrMalformed = errors.New("gateway: malformed response")
	ErrTimeout   = errors.New("gateway: timeout")
)

// Error is returned once the retry policy is exhausted.
type Error struct {
	Kind      Kind
	Attempts  int
	Malformed bool
	Timeout   bool
	Err       error
}

func (e *Error) Error() string {
	what := "failed"
	switch {
	case e.Malformed:
		what = "malformed response"
	case e.Timeout:
		what = "timed out"
	}
	return fmt.Sprintf("gateway %s %s after %d attempt(s): %v", e.Kind, what, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrMalformed:
		return e.Malformed
	case ErrTimeout:
		return e.Timeout
	}
	return false
}

// validationError marks a payload that decoded as JSON but violates the
// result contract.
type validationError struct {
	field  string
	reason string
}

func (v *validationError) Error() string {
	return fmt.Sprintf("%s: %s", v.field, v.reason)
}

func invalid(field, reason string) error {
	return &validationError{field: field, reason: reason}
}
