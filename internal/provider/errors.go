package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrEditUnsupported is returned when a link-edit request is built against a
// dialect without an edit operation.
var ErrEditUnsupported = errors.New("provider dialect does not support order edit")

// ProviderError classifies upstream call failures. Transient errors are safe
// for the caller to retry; the forwarder itself never retries.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 5)
	parts = append(parts, "provider error")

	if name := strings.TrimSpace(e.Provider); name != "" {
		parts = append(parts, name)
	}
	if op := strings.TrimSpace(e.Op); op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", op))
	}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether an error should be retried by the caller.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
