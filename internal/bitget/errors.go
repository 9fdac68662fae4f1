package bitget

import (
	"errors"
	"fmt"
	"net"
)

// APIError is a non-2xx or non-zero-code response from the exchange.
// Transient failures (rate limits, server errors) are retryable; order
// rejections and bad requests are not.
type APIError struct {
	Status int    // HTTP status
	Code   string // exchange error code, "00000" means success
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bitget: status=%d code=%s msg=%s", e.Status, e.Code, e.Msg)
}

// Retryable reports whether the call may succeed on a later attempt.
func (e *APIError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

// IsRetryable classifies an error from a gateway call: network-level
// failures and transient API errors should be retried; everything else is a
// rejection and must surface immediately.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
