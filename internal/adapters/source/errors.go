package source

import (
	"errors"
	"fmt"
)

// ErrUnavailable marks failures that should trigger the fallback source.
var ErrUnavailable = errors.New("source unavailable")

var (
	ErrMissingAPIKey    = fmt.Errorf("%w: api key is not set", ErrUnavailable)
	ErrMalformedPayload = fmt.Errorf("%w: malformed payload", ErrUnavailable)
)

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream HTTP error: %d", e.Code)
}

// Unwrap lets errors.Is match ErrUnavailable.
func (e *StatusError) Unwrap() error { return ErrUnavailable }
