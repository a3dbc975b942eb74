package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/guardrail/service/audit"
	"github.com/viant/guardrail/service/classifier"
	"github.com/viant/guardrail/service/dao"
	lock "github.com/viant/guardrail/service/lock"
)

func highRisk() classifier.Classification {
	return classifier.Classification{
		Level:     classifier.RiskHigh,
		Penalty:   80,
		Locked:    true,
		Rationale: "irreversible org deploy",
	}
}

func criticalRisk() classifier.Classification {
	return classifier.Classification{
		Level:     classifier.RiskCritical,
		Penalty:   150,
		Locked:    true,
		Rationale: "large global transfer",
	}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc := New()

	locked, err := svc.Create(ctx, "action-1", "deploy", highRisk())
	require.NoError(t, err)
	assert.Equal(t, lock.StatusLocked, locked.Status)
	assert.Equal(t, 2, locked.Requirement.Count)
	assert.Equal(t, []string{"seniors"}, locked.Requirement.Roles)

	// an open lock blocks a second one for the same action
	_, err = svc.Create(ctx, "action-1", "deploy", highRisk())
	assert.ErrorIs(t, err, lock.ErrAlreadyLocked)

	// unrelated actions are unaffected
	_, err = svc.Create(ctx, "action-2", "deploy", highRisk())
	assert.NoError(t, err)
}

func TestRecordDecision(t *testing.T) {
	ctx := context.Background()
	trail := audit.New()
	svc := New(WithAuditRecorder(trail))

	locked, err := svc.Create(ctx, "action-1", "deploy", highRisk())
	require.NoError(t, err)

	_, err = svc.RecordDecision(ctx, locked.ID, "alice", lock.DecisionApprove, "")
	require.NoError(t, err)

	// a reviewer records at most one decision per lock
	_, err = svc.RecordDecision(ctx, locked.ID, "alice", lock.DecisionApprove, "")
	assert.ErrorIs(t, err, lock.ErrDuplicateApproval)

	current, err := svc.RecordDecision(ctx, locked.ID, "bob", lock.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, lock.StatusUnlocked, current.Status)

	// terminal locks accept no further decisions
	_, err = svc.RecordDecision(ctx, locked.ID, "carol", lock.DecisionApprove, "")
	assert.ErrorIs(t, err, lock.ErrResolved)

	entries, err := trail.List(ctx)
	require.NoError(t, err)
	transitions := map[string]int{}
	for _, entry := range entries {
		transitions[entry.Transition]++
	}
	assert.Equal(t, 1, transitions["locked"])
	assert.Equal(t, 2, transitions["approved"])
	assert.Equal(t, 1, transitions["unlocked"])
}

// With a role resolver configured, only reviewers holding a required role may
// record decisions. Unknown reviewers never count towards the requirement.
func TestRecordDecisionRoleResolver(t *testing.T) {
	ctx := context.Background()
	roles := map[string][]string{
		"alice": {"admins"},
		"bob":   {"admins", "seniors"},
		"carol": {"admins"},
		"dave":  {"seniors"},
	}
	svc := New(WithRoleResolver(func(reviewerID string) []string {
		return roles[reviewerID]
	}))

	locked, err := svc.Create(ctx, "action-1", "transfer", criticalRisk())
	require.NoError(t, err)
	require.Equal(t, []string{"admins"}, locked.Requirement.Roles)

	for _, reviewer := range []string{"rando-1", "rando-2", "rando-3"} {
		_, err = svc.RecordDecision(ctx, locked.ID, reviewer, lock.DecisionApprove, "")
		assert.ErrorIs(t, err, lock.ErrIneligibleReviewer)
	}
	// dave holds a role, but not one the requirement names
	_, err = svc.RecordDecision(ctx, locked.ID, "dave", lock.DecisionApprove, "")
	assert.ErrorIs(t, err, lock.ErrIneligibleReviewer)

	current, err := svc.Get(ctx, locked.ID)
	require.NoError(t, err)
	assert.Equal(t, lock.StatusLocked, current.Status)
	assert.Equal(t, 0, current.ApprovalCount())

	for _, reviewer := range []string{"alice", "bob", "carol"} {
		current, err = svc.RecordDecision(ctx, locked.ID, reviewer, lock.DecisionApprove, "")
		require.NoError(t, err)
	}
	assert.Equal(t, lock.StatusUnlocked, current.Status)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	trail := audit.New()
	svc := New(WithAuditRecorder(trail))

	locked, err := svc.Create(ctx, "action-1", "deploy", highRisk())
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, locked.ID, "no reviewers available")
	require.NoError(t, err)
	assert.Equal(t, lock.StatusRejected, cancelled.Status)
	assert.NotNil(t, cancelled.ResolvedAt)

	// a cancelled lock is terminal
	_, err = svc.Cancel(ctx, locked.ID, "again")
	assert.ErrorIs(t, err, lock.ErrResolved)
	_, err = svc.RecordDecision(ctx, locked.ID, "alice", lock.DecisionApprove, "")
	assert.ErrorIs(t, err, lock.ErrResolved)

	// and releases the action for a fresh lock
	_, err = svc.Create(ctx, "action-1", "deploy", highRisk())
	assert.NoError(t, err)

	entries, err := trail.List(ctx, dao.NewParameter("Transition", "cancelled"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "no reviewers available", entries[0].Reason)
}

// A critical lock that collects 2 approvals and then a rejection must end
// rejected, never unlocked.
func TestRejectWins(t *testing.T) {
	ctx := context.Background()
	svc := New()

	locked, err := svc.Create(ctx, "action-1", "transfer", criticalRisk())
	require.NoError(t, err)
	assert.Equal(t, 3, locked.Requirement.Count)

	_, err = svc.RecordDecision(ctx, locked.ID, "alice", lock.DecisionApprove, "")
	require.NoError(t, err)
	_, err = svc.RecordDecision(ctx, locked.ID, "bob", lock.DecisionApprove, "")
	require.NoError(t, err)
	current, err := svc.RecordDecision(ctx, locked.ID, "carol", lock.DecisionReject, "too risky")
	require.NoError(t, err)

	assert.Equal(t, lock.StatusRejected, current.Status)

	result, err := svc.AttemptUnlock(ctx, locked.ID)
	require.NoError(t, err)
	assert.Equal(t, lock.OutcomeRejected, result.Outcome)
}

func TestAttemptUnlock(t *testing.T) {
	ctx := context.Background()
	svc := New(WithRequirementPolicy(&lock.RequirementPolicy{
		Default: lock.Requirement{Count: 2, Roles: []string{"reviewer"}},
	}))

	locked, err := svc.Create(ctx, "action-1", "deploy", highRisk())
	require.NoError(t, err)

	result, err := svc.AttemptUnlock(ctx, locked.ID)
	require.NoError(t, err)
	assert.Equal(t, lock.OutcomeInsufficient, result.Outcome)
	assert.Equal(t, 0, result.Approvals)
	assert.Equal(t, 2, result.Required)

	_, err = svc.RecordDecision(ctx, locked.ID, "alice", lock.DecisionApprove, "")
	require.NoError(t, err)
	_, err = svc.RecordDecision(ctx, locked.ID, "bob", lock.DecisionApprove, "")
	require.NoError(t, err)

	// RecordDecision already unlocked once the requirement was met
	result, err = svc.AttemptUnlock(ctx, locked.ID)
	require.NoError(t, err)
	assert.Equal(t, lock.OutcomeAlreadyUnlocked, result.Outcome)

	_, err = svc.AttemptUnlock(ctx, "missing")
	assert.ErrorIs(t, err, lock.ErrNotFound)
}

// Concurrent approvals for the same lock must be serialised: the lock ends
// unlocked exactly once with every decision accounted for.
func TestConcurrentApprovals(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 25; round++ {
		svc := New()
		locked, err := svc.Create(ctx, fmt.Sprintf("action-%d", round), "transfer", criticalRisk())
		require.NoError(t, err)

		reviewers := []string{"r1", "r2", "r3", "r4", "r5"}
		var wg sync.WaitGroup
		wg.Add(len(reviewers))
		for _, reviewer := range reviewers {
			go func(id string) {
				defer wg.Done()
				_, _ = svc.RecordDecision(ctx, locked.ID, id, lock.DecisionApprove, "")
			}(reviewer)
		}
		wg.Wait()

		current, err := svc.Get(ctx, locked.ID)
		require.NoError(t, err)
		assert.Equal(t, lock.StatusUnlocked, current.Status)
		assert.GreaterOrEqual(t, current.ApprovalCount(), current.Requirement.Count)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	svc := New()

	first, err := svc.Create(ctx, "action-1", "deploy", highRisk())
	require.NoError(t, err)
	_, err = svc.Create(ctx, "action-2", "deploy", highRisk())
	require.NoError(t, err)

	_, err = svc.RecordDecision(ctx, first.ID, "alice", lock.DecisionReject, "no")
	require.NoError(t, err)

	open, err := svc.List(ctx, dao.NewParameter("State", string(lock.StatusLocked)))
	require.NoError(t, err)
	assert.Len(t, open, 1)
	assert.Equal(t, "action-2", open[0].ActionID)
}
