package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUpstreamRead wraps every failure of a state read.
	ErrUpstreamRead = errors.New("upstream state read failed")

	// ErrUpstreamWrite wraps every failure of a state write.
	ErrUpstreamWrite = errors.New("upstream state write failed")

	// ErrMalformedState is returned when the store answers with an undecodable body or an unknown state.
	ErrMalformedState = errors.New("malformed state payload")

	// ErrEmptyURL is returned when the client is constructed without a store URL.
	ErrEmptyURL = errors.New("upstream url is required")
)

// StatusError reports a non-2xx answer from the state store.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("state store returned status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
