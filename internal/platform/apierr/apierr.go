package apierr

import (
	"fmt"
	"net/http"
)

// Error codes returned in the error envelope. Clients branch on these, so
// they never change once published.
const (
	CodeSyncDisabled   = "sync_disabled"
	CodeSyncInProgress = "sync_in_progress"
	CodeCourseNotFound = "course_not_found"
	CodeCourseNotBound = "course_not_bound"
)

// Error carries the HTTP status and stable code for a failure.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Err != nil && e.Code != "":
		return e.Code + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	case e.Code != "":
		return e.Code
	case e.Status != 0:
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotFound(code string, err error) *Error { return New(http.StatusNotFound, code, err) }

func Conflict(code string, err error) *Error { return New(http.StatusConflict, code, err) }

func Unavailable(code string, err error) *Error {
	return New(http.StatusServiceUnavailable, code, err)
}

// Unprocessable is a well-formed request the current course state cannot serve.
func Unprocessable(code string, err error) *Error {
	return New(http.StatusUnprocessableEntity, code, err)
}
