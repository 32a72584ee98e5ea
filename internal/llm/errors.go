package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Veraticus/billsplit/internal/common"
)

// statusError classifies a non-200 provider reply. Rate limits and server
// errors are retryable; everything else is a permanent transport failure.
func statusError(provider string, code int, body []byte) error {
	err := fmt.Errorf("%w: %s API error (status %d): %s", common.ErrTransportFailure, provider, code, truncate(string(body), 512))
	switch {
	case code == http.StatusTooManyRequests:
		return &common.RetryableError{Err: fmt.Errorf("%w: %w", common.ErrRateLimit, err), Retryable: true}
	case code >= 500:
		return &common.RetryableError{Err: err, Retryable: true}
	default:
		return &common.RetryableError{Err: err, Retryable: false}
	}
}

// requestError wraps a failure to reach the provider at all.
func requestError(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %s request failed: %w", common.ErrTransportFailure, provider, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
