package adax

import (
	"errors"
	"strconv"
)

// ErrRateLimitExceeded indicates the API still rejected a request with HTTP 429 after it was retried.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// AuthError indicates the API rejected the client's credentials.
type AuthError struct {
	StatusCode int
	Detail     string
}

func (e *AuthError) Error() string {
	msg := "authentication failed"
	if e.StatusCode != 0 {
		msg += ": " + strconv.Itoa(e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// FetchError indicates the API returned a response that could not be used.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return "invalid response: " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// TransportError indicates the request did not result in an HTTP response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
