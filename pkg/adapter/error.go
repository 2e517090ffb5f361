package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// AdapterError wraps provider errors with status metadata.
type AdapterError struct {
	Provider  string
	Status    int
	Temporary bool
	Err       error
}

func (e *AdapterError) Error() string {
	if e == nil {
		return "adapter error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s API error (status=%d)", e.Provider, e.Status)
}

func (e *AdapterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// wrapStatus attaches an HTTP status to a provider error.
func wrapStatus(provider string, status int, err error) error {
	return &AdapterError{
		Provider:  provider,
		Status:    status,
		Temporary: status == http.StatusTooManyRequests || status >= 500,
		Err:       err,
	}
}

// IsTransient reports whether an error is safe to retry.
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
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		if adapterErr.Temporary {
			return true
		}
		if adapterErr.Status == 429 || (adapterErr.Status >= 500 && adapterErr.Status <= 599) {
			return true
		}
	}
	return false
}

// IsAuth reports whether a provider rejected the credential.
func IsAuth(err error) bool {
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		return adapterErr.Status == http.StatusUnauthorized || adapterErr.Status == http.StatusForbidden
	}
	return false
}
