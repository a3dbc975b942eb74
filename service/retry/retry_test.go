package retry

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/guardrail/service/audit"
)

func TestBackoff(t *testing.T) {
	config := &Config{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    500 * time.Millisecond,
	}

	assert.Equal(t, 100*time.Millisecond, Backoff(0, config))
	assert.Equal(t, 200*time.Millisecond, Backoff(1, config))
	assert.Equal(t, 400*time.Millisecond, Backoff(2, config))
	// capped from here on
	assert.Equal(t, 500*time.Millisecond, Backoff(3, config))
	assert.Equal(t, 500*time.Millisecond, Backoff(10, config))
	assert.Equal(t, 100*time.Millisecond, Backoff(-1, config))
}

func TestBackoffJitter(t *testing.T) {
	config := &Config{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    time.Second,
		Jitter:      true,
	}
	for attempt := 0; attempt < 4; attempt++ {
		ceiling := config.BaseDelay * time.Duration(1<<uint(attempt))
		for i := 0; i < 50; i++ {
			delay := Backoff(attempt, config)
			assert.GreaterOrEqual(t, delay, time.Duration(0))
			assert.LessOrEqual(t, delay, ceiling)
		}
	}
}

func TestRunSucceeds(t *testing.T) {
	handler := New(fastConfig())

	calls := 0
	task, err := handler.Do(context.Background(), "deploy", func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return Transient(fmt.Errorf("upstream busy"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, task.Status)
	assert.Equal(t, 2, task.Attempts)
	assert.True(t, task.Terminal())
}

func TestRunExhausts(t *testing.T) {
	trail := audit.New()
	handler := New(fastConfig(), WithAuditRecorder(trail))

	calls := 0
	task, err := handler.Do(context.Background(), "deploy", func(ctx context.Context) error {
		calls++
		return Transient(fmt.Errorf("upstream busy"))
	})
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, calls)
	assert.Equal(t, StatusExhausted, task.Status)

	entries, err := trail.List(context.Background())
	require.NoError(t, err)
	var last *audit.Entry
	for _, entry := range entries {
		if entry.EntityID == task.ID {
			last = entry
		}
	}
	require.NotNil(t, last)
	assert.Equal(t, "exhausted", last.Transition)
}

func TestRunFatalError(t *testing.T) {
	handler := New(fastConfig())

	fatal := fmt.Errorf("permission denied")
	calls := 0
	task, err := handler.Do(context.Background(), "deploy", func(ctx context.Context) error {
		calls++
		return fatal
	})
	assert.ErrorIs(t, err, fatal)
	// fatal errors never burn the remaining attempt budget
	assert.Equal(t, 1, calls)
	assert.Equal(t, StatusFailed, task.Status)
}

func TestRunCancellation(t *testing.T) {
	handler := New(&Config{MaxAttempts: 5, BaseDelay: time.Second, Multiplier: 2, MaxDelay: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	task, err := handler.Do(ctx, "deploy", func(ctx context.Context) error {
		cancel()
		return Transient(fmt.Errorf("upstream busy"))
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusCancelled, task.Status)
	assert.Equal(t, 1, task.Attempts)
}

func TestRunInvalidConfig(t *testing.T) {
	handler := New(DefaultConfig())
	task := NewTask("deploy")
	err := handler.Run(context.Background(), task, func(ctx context.Context) error {
		return nil
	}, &Config{MaxAttempts: 0})
	assert.Error(t, err)
	assert.Equal(t, StatusFailed, task.Status)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(fmt.Errorf("validation failed")))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(ErrTransient))
	assert.True(t, IsRetryable(Transient(fmt.Errorf("io glitch"))))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", ErrTransient)))

	// net timeouts satisfy the Timeout() interface
	timeout := &net.DNSError{Err: "lookup timed out", IsTimeout: true}
	assert.True(t, IsRetryable(timeout))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, (&Config{MaxAttempts: 0, BaseDelay: time.Second, Multiplier: 2}).Validate())
	assert.Error(t, (&Config{MaxAttempts: 1, BaseDelay: -time.Second, Multiplier: 2}).Validate())
	assert.Error(t, (&Config{MaxAttempts: 1, BaseDelay: time.Second, Multiplier: 0.5}).Validate())
}

func fastConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Multiplier:  2,
		MaxDelay:    5 * time.Millisecond,
	}
}
