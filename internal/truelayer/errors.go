package truelayer

import (
	"encoding/json"
	"fmt"
)

// AuthError is a structured 4xx error from the TrueLayer token or data
// endpoints, carrying the OAuth2-style error code and optional description.
type AuthError struct {
	Code        string
	Description string
}

func (e *AuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return e.Code
}

// UpstreamError is any non-2xx response that did not carry a structured
// error body.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("request to TrueLayer failed with status: %d", e.Status)
}

// DecodeError wraps a malformed response body.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode TrueLayer response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// classifyError maps a non-2xx response to the error taxonomy: client errors
// with a parseable {error, error_description} body become an AuthError,
// everything else an UpstreamError.
func classifyError(status int, body []byte) error {
	if status >= 400 && status < 500 {
		var res errorResponse
		if err := json.Unmarshal(body, &res); err == nil && res.Error != "" {
			return &AuthError{Code: res.Error, Description: res.ErrorDescription}
		}
	}
	return &UpstreamError{Status: status}
}
