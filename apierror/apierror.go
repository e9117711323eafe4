// Package apierror defines the normalized error shape surfaced by the request
// layer. Callers never see transport-specific error types; every failed call
// resolves to an *Error with an HTTP status (0 when the request never reached
// the server), an optional machine-readable code, and a message.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Machine-readable error codes passed through from the backend or assigned
// locally by the request layer.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNetwork            = "NETWORK_ERROR"
	CodeAuthFailure        = "AUTH_FAILURE"
)

// Error is the normalized API error. Status is the HTTP status code, or 0 if
// the request never reached the server (DNS failure, timeout, offline).
type Error struct {
	Status  int            `json:"status"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// serverBody is the structured error body the backend returns on failures.
type serverBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

// FromResponse normalizes a non-2xx response. A structured server body
// {code, message, details} is passed through; when the server provides no
// message the HTTP status text is used.
func FromResponse(status int, body []byte) *Error {
	apiErr := &Error{Status: status}
	var parsed serverBody
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		apiErr.Code = parsed.Code
		apiErr.Message = parsed.Message
		apiErr.Details = parsed.Details
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// FromTransport normalizes a transport-level failure (the request never
// produced an HTTP response).
func FromTransport(err error) *Error {
	return &Error{
		Status:  0,
		Code:    CodeNetwork,
		Message: err.Error(),
	}
}

// AuthFailure is the error surfaced when a 401 could not be recovered by a
// token refresh.
func AuthFailure() *Error {
	return &Error{
		Status:  http.StatusUnauthorized,
		Code:    CodeAuthFailure,
		Message: "authentication failed",
	}
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Humanize turns an error into a short message suitable for direct display.
// It lives outside the request pipeline; nothing in the core depends on it.
func Humanize(err error) string {
	if err == nil {
		return "Unknown error"
	}
	apiErr, ok := As(err)
	if !ok {
		return err.Error()
	}
	switch apiErr.Code {
	case CodeInvalidCredentials:
		return "Invalid email or password."
	case CodeValidation:
		return "Please check the form and try again."
	case CodeNetwork:
		return "Network issue. Please retry."
	}
	if apiErr.Message != "" {
		return apiErr.Message
	}
	return "Something went wrong"
}
