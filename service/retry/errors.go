package retry

import (
	"context"
	"errors"
	"fmt"
)

// ErrTransient marks an error as retryable when wrapped:
//
//	return fmt.Errorf("storage timed out: %w", retry.ErrTransient)
var ErrTransient = errors.New("retry: transient")

// ExhaustedError is the terminal failure after the attempt budget is spent.
// It wraps the last attempt's error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry: exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Transient wraps err so that IsRetryable reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

type retryable interface{ Retryable() bool }

type timeouter interface{ Timeout() bool }

type temporary interface{ Temporary() bool }

// IsRetryable classifies an error as retryable (timeouts, transient I/O,
// rate-limited upstreams) or fatal (validation, permission).  Unknown errors
// are fatal - retrying blindly is never safe around side effects.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	var viaFlag retryable
	if errors.As(err, &viaFlag) {
		return viaFlag.Retryable()
	}
	var viaTimeout timeouter
	if errors.As(err, &viaTimeout) && viaTimeout.Timeout() {
		return true
	}
	var viaTemporary temporary
	if errors.As(err, &viaTemporary) && viaTemporary.Temporary() {
		return true
	}
	return false
}
