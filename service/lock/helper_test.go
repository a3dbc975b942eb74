package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/guardrail/service/classifier"
	"github.com/viant/guardrail/service/lock"
	"github.com/viant/guardrail/service/lock/memory"
)

func classification() classifier.Classification {
	return classifier.Classification{
		Level:     classifier.RiskHigh,
		Penalty:   80,
		Locked:    true,
		Rationale: "irreversible org deploy",
	}
}

func TestWaitForOutcome(t *testing.T) {
	ctx := context.Background()
	svc := memory.New()

	locked, err := svc.Create(ctx, "action-1", "deploy", classification())
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = svc.RecordDecision(ctx, locked.ID, "alice", lock.DecisionApprove, "")
		_, _ = svc.RecordDecision(ctx, locked.ID, "bob", lock.DecisionApprove, "")
	}()

	resolved, err := lock.WaitForOutcome(ctx, svc, locked.ID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, lock.StatusUnlocked, resolved.Status)
}

func TestWaitForOutcomeAlreadyResolved(t *testing.T) {
	ctx := context.Background()
	svc := memory.New()

	locked, err := svc.Create(ctx, "action-1", "deploy", classification())
	require.NoError(t, err)
	_, err = svc.RecordDecision(ctx, locked.ID, "alice", lock.DecisionReject, "no")
	require.NoError(t, err)

	// no queue consumption needed when the lock is already terminal
	resolved, err := lock.WaitForOutcome(ctx, svc, locked.ID, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, lock.StatusRejected, resolved.Status)
}

func TestWaitForOutcomeTimeout(t *testing.T) {
	ctx := context.Background()
	svc := memory.New()

	locked, err := svc.Create(ctx, "action-1", "deploy", classification())
	require.NoError(t, err)

	_, err = lock.WaitForOutcome(ctx, svc, locked.ID, 50*time.Millisecond)
	assert.Error(t, err)
}

func TestAutoDecider(t *testing.T) {
	ctx := context.Background()
	svc := memory.New(memory.WithRequirementPolicy(&lock.RequirementPolicy{
		Default: lock.Requirement{Count: 1, Roles: []string{"reviewer"}},
	}))

	locked, err := svc.Create(ctx, "action-1", "deploy", classification())
	require.NoError(t, err)

	stop := lock.AutoDecider(ctx, svc, "auto", func(l *lock.LockedAction) (lock.Decision, string) {
		return lock.DecisionApprove, ""
	}, 10*time.Millisecond)
	defer stop()

	resolved, err := lock.WaitForOutcome(ctx, svc, locked.ID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, lock.StatusUnlocked, resolved.Status)
	assert.Equal(t, "auto", resolved.Approvals[0].ReviewerID)
}
