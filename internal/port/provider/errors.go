package provider

import (
	"errors"
	"fmt"
)

// ErrMissingCredential indicates a backend was selected whose API key is not
// configured. There is no fallback for this.
var ErrMissingCredential = errors.New("provider credential not configured")

// UpstreamError reports a backend that was unreachable, timed out, or
// returned a non-success status. It always carries the backend name.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream failure: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Upstream wraps err as an UpstreamError for the named backend.
func Upstream(name string, err error) *UpstreamError {
	return &UpstreamError{Provider: name, Err: err}
}
