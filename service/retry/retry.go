package retry

import (
	"context"
	"time"

	"github.com/viant/guardrail/internal/clock"
	"github.com/viant/guardrail/internal/idgen"
	"github.com/viant/guardrail/service/audit"
)

// Status of a supervised task.  Succeeded, failed, exhausted and cancelled
// are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusExhausted Status = "exhausted"
	StatusCancelled Status = "cancelled"
)

// Task is a unit of work under retry supervision.  Attempts increases
// monotonically; once terminal the task never changes again.
type Task struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Attempts  int       `json:"attempts"`
	Status    Status    `json:"status"`
	LastError string    `json:"lastError,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Terminal reports whether the task settled.
func (t *Task) Terminal() bool {
	switch t.Status {
	case StatusSucceeded, StatusFailed, StatusExhausted, StatusCancelled:
		return true
	}
	return false
}

// NewTask creates a pending task.
func NewTask(name string) *Task {
	now := clock.Now()
	return &Task{
		ID:        idgen.New(),
		Name:      name,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Handler holds the pieces shared by every retried operation: the config and
// an optional audit recorder fed with task transitions.
type Handler struct {
	config   *Config
	recorder audit.Recorder
}

type Option func(*Handler)

// WithAuditRecorder makes the handler append an audit entry per task
// transition.
func WithAuditRecorder(recorder audit.Recorder) Option {
	return func(h *Handler) { h.recorder = recorder }
}

// New creates a retry handler with the supplied default config.
func New(config *Config, options ...Option) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	ret := &Handler{config: config}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Do runs fn under a fresh task with the handler's default config and
// returns the settled task.
func (h *Handler) Do(ctx context.Context, name string, fn func(ctx context.Context) error) (*Task, error) {
	task := NewTask(name)
	err := h.Run(ctx, task, fn, h.config)
	return task, err
}

// Run drives the task through pending → running → (succeeded | failed |
// exhausted | cancelled).  Each failed attempt increments the attempt count
// and records the error; retryable failures with attempts remaining sleep
// for the computed backoff before the next attempt.  Cancelling ctx stops
// scheduling further attempts but never aborts an attempt in flight.
func (h *Handler) Run(ctx context.Context, task *Task, fn func(ctx context.Context) error, config *Config) error {
	if config == nil {
		config = h.config
	}
	if err := config.Validate(); err != nil {
		h.transition(ctx, task, StatusFailed, err)
		return err
	}

	var lastErr error
	for task.Attempts < config.MaxAttempts {
		if err := ctx.Err(); err != nil {
			h.transition(ctx, task, StatusCancelled, err)
			return err
		}

		h.transition(ctx, task, StatusRunning, nil)
		task.Attempts++
		lastErr = fn(ctx)
		if lastErr == nil {
			h.transition(ctx, task, StatusSucceeded, nil)
			return nil
		}

		if !IsRetryable(lastErr) {
			h.transition(ctx, task, StatusFailed, lastErr)
			return lastErr
		}
		if task.Attempts >= config.MaxAttempts {
			break
		}

		delay := Backoff(task.Attempts-1, config)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			task.LastError = lastErr.Error()
			h.transition(ctx, task, StatusCancelled, ctx.Err())
			return ctx.Err()
		case <-timer.C:
		}
	}

	exhausted := &ExhaustedError{Attempts: task.Attempts, Err: lastErr}
	h.transition(ctx, task, StatusExhausted, exhausted)
	return exhausted
}

func (h *Handler) transition(_ context.Context, task *Task, status Status, err error) {
	task.Status = status
	task.UpdatedAt = clock.Now()
	if err != nil {
		task.LastError = err.Error()
	}
	if h.recorder == nil || status == StatusRunning {
		return
	}
	// recorded against a fresh context so that a cancelled caller still
	// leaves its terminal decision on the trail
	_ = h.recorder.Record(context.Background(), &audit.Entry{
		EntityID:   task.ID,
		EntityKind: "retry",
		Transition: string(status),
		Reason:     task.LastError,
	})
}
