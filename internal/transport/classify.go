package transport

import (
	"context"
	"errors"
	"net"
	"os"
)

// classifyWeight maps a request outcome to a breaker error weight.
//
//   - timeouts -> 1.5
//   - 5xx -> 1.0
//   - 429 -> 0.5
//   - other 4xx -> 0.0 (caller fault, not gateway health)
//   - caller cancellation -> 0.0
//   - network errors -> 1.0
//   - nil -> 0.0
func classifyWeight(err error) float64 {
	if err == nil {
		return 0
	}

	if errors.Is(err, context.Canceled) {
		return 0
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return 1.5
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return 0.5
		case apiErr.StatusCode >= 500:
			return 1.0
		default:
			return 0
		}
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return 1.0
	}

	// Connection refused and friends: treat as gateway fault.
	return 1.0
}
