package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthorized = errors.New("session expired")
	ErrForbidden    = errors.New("access denied")
)

const defaultMessage = "Something went wrong"

// RequestError is returned for every failed REST call. The caller decides
// how to notify the user.
type RequestError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// UserMessage is the notice shown to the user for this failure.
func (e *RequestError) UserMessage() string {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return "Session expired. Please login again."
	case e.StatusCode == http.StatusForbidden:
		return "Access denied"
	case e.StatusCode >= http.StatusInternalServerError:
		return "Server error. Please try again later."
	case e.Message != "":
		return e.Message
	default:
		return defaultMessage
	}
}

func newStatusError(op string, status int, message string) *RequestError {
	if message == "" {
		message = http.StatusText(status)
	}
	if message == "" {
		message = defaultMessage
	}
	e := &RequestError{Op: op, StatusCode: status, Message: message}
	switch status {
	case http.StatusUnauthorized:
		e.Err = ErrUnauthorized
	case http.StatusForbidden:
		e.Err = ErrForbidden
	}
	return e
}

func newTransportError(op string, err error) *RequestError {
	return &RequestError{Op: op, Message: err.Error(), Err: err}
}
