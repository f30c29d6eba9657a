package moodle

import (
	"errors"
	"fmt"
)

var (
	ErrPermission = errors.New("moodle: permission denied")
	ErrNotFound   = errors.New("moodle: not found")
)

// Exception is the payload Moodle returns with HTTP 200 when a web service
// function fails.
type Exception struct {
	Function  string `json:"-"`
	Exception string `json:"exception"`
	ErrorCode string `json:"errorcode"`
	Message   string `json:"message"`
	DebugInfo string `json:"debuginfo,omitempty"`
}

func (e *Exception) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("moodle %s: %s (%s)", e.Function, e.Message, e.ErrorCode)
}

func (e *Exception) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrPermission:
		return isPermissionCode(e.ErrorCode)
	case ErrNotFound:
		return isNotFoundCode(e.ErrorCode)
	}
	return false
}

func isPermissionCode(code string) bool {
	switch code {
	case "nopermissions", "accessexception", "requireloginerror", "invalidtoken",
		"servicerequireslogin", "usernotfullysetup", "webservicefunctionnotavailable":
		return true
	}
	return false
}

func isNotFoundCode(code string) bool {
	switch code {
	case "invalidrecord", "invalidrecordunknown", "invalidcourseid", "invalidcoursemodule",
		"invalidcompetency", "invalidcompetencyframework":
		return true
	}
	return false
}

// HTTPError is a non-2xx transport response from the REST endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("moodle http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}
