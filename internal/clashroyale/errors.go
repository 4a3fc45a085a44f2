package clashroyale

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorClass groups upstream failures by how callers should react to them.
type ErrorClass string

const (
	ClassNotFound    ErrorClass = "not_found"
	ClassForbidden   ErrorClass = "forbidden"
	ClassRateLimited ErrorClass = "rate_limited"
	ClassNetwork     ErrorClass = "network"
	ClassServerError ErrorClass = "server_error"
	ClassOther       ErrorClass = "other"
)

// APIError is returned once the client has given up on a request.
// StatusCode is 0 for network failures.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clash royale api error %d (%s): %s", e.StatusCode, e.Class, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ClassifyStatus maps an HTTP status code to an ErrorClass.
func ClassifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusNotFound:
		return ClassNotFound
	case status == http.StatusForbidden:
		return ClassForbidden
	case status == http.StatusTooManyRequests:
		return ClassRateLimited
	case status >= 500:
		return ClassServerError
	default:
		return ClassOther
	}
}

func newStatusError(status int, message string) *APIError {
	return &APIError{StatusCode: status, Class: ClassifyStatus(status), Message: message}
}

func newNetworkError(err error) *APIError {
	return &APIError{Class: ClassNetwork, Message: fmt.Sprintf("network error: %v", err), Err: err}
}

// ClassOf returns the class of err, or ClassOther when err is not an *APIError.
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ClassOther
}

// IsNotFound reports whether err is an upstream 404
func IsNotFound(err error) bool {
	return ClassOf(err) == ClassNotFound
}

// IsForbidden reports whether err is an upstream 403 (bad token or IP not allow-listed)
func IsForbidden(err error) bool {
	return ClassOf(err) == ClassForbidden
}
