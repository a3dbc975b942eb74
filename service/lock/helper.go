package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/guardrail/service/dao"
)

func openLocksParameter() *dao.Parameter {
	return dao.NewParameter("State", string(StatusLocked))
}

// WaitForOutcome blocks until the lock identified by lockID reaches a
// terminal status, observed on the service event queue, or until the timeout
// elapses.  The current state is checked first so that callers never miss a
// decision recorded before they started waiting.
func WaitForOutcome(ctx context.Context, svc Service, lockID string, timeout time.Duration) (*LockedAction, error) {
	if current, err := svc.Get(ctx, lockID); err == nil && current.Resolved() {
		return current, nil
	}

	deadline := time.Now().Add(timeout)
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for {
		msg, err := svc.Queue().Consume(waitCtx)
		if err != nil {
			return nil, fmt.Errorf("timed out waiting for lock %s: %w", lockID, err)
		}
		event := msg.T()
		_ = msg.Ack()
		if event.Data == nil || event.Data.ID != lockID {
			continue
		}
		if event.Data.Resolved() {
			return event.Data, nil
		}
	}
}

// DecisionFunc decides what to do with an open lock.
// Return (DecisionApprove, "") to approve, (DecisionReject, "…") to reject.
type DecisionFunc func(l *LockedAction) (Decision, string)

// AutoDecider starts a goroutine that polls open locks and applies fn to each
// one as the supplied reviewer.  It returns stop() - call it (or cancel ctx)
// to exit.  Intended for tests and operational tooling.
func AutoDecider(ctx context.Context, svc Service, reviewerID string, fn DecisionFunc, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				open, _ := svc.List(ctx, openLocksParameter())
				for _, locked := range open {
					decision, reason := fn(locked)
					_, _ = svc.RecordDecision(ctx, locked.ID, reviewerID, decision, reason)
				}
			}
		}
	}()
	return func() { close(done) }
}
