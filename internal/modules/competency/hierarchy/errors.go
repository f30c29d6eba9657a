package hierarchy

import (
	"errors"
	"fmt"
)

var (
	// ErrPermission and ErrNotFound classify platform failures. Platform
	// bindings wrap their own errors with these.
	ErrPermission = errors.New("permission denied")
	ErrNotFound   = errors.New("not found")

	ErrLeaseHeld       = errors.New("sync lease held by another run")
	ErrCourseNotBound  = errors.New("course has no platform course id")
	ErrCourseNotStored = errors.New("course not found")
)

type SyncErrorClass string

const (
	SyncErrPermission SyncErrorClass = "permission"
	SyncErrNotFound   SyncErrorClass = "not_found"
	SyncErrPlatform   SyncErrorClass = "platform"
)

// SyncError is the failure of one platform operation. It never aborts the
// run; dependent operations are skipped instead.
type SyncError struct {
	Op     Op
	Target string
	Class  SyncErrorClass
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Target, e.Class, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

func newSyncError(op Op, target string, err error) *SyncError {
	class := SyncErrPlatform
	switch {
	case errors.Is(err, ErrPermission):
		class = SyncErrPermission
	case errors.Is(err, ErrNotFound):
		class = SyncErrNotFound
	}
	return &SyncError{Op: op, Target: target, Class: class, Err: err}
}
