package consensus

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/guardrail/service/classifier"
)

func lowRisk() classifier.Classification {
	return classifier.Classification{
		Level:     classifier.RiskLow,
		Penalty:   15,
		Rationale: "reversible notify",
	}
}

func TestPropose(t *testing.T) {
	ctx := context.Background()
	svc := New(WithDefaultWindow(time.Hour))

	item, err := svc.Propose(ctx, "action-1", "notify", lowRisk(), -1)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, item.Status)
	assert.Equal(t, time.Hour, item.Deadline.Sub(item.OpenedAt))

	// a classification at or above the lock threshold never takes the
	// passive path
	locked := classifier.Classification{Level: classifier.RiskHigh, Locked: true}
	_, err = svc.Propose(ctx, "action-2", "deploy", locked, -1)
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestCheckAndResolve(t *testing.T) {
	ctx := context.Background()
	svc := New()

	// a zero window resolves on the first check
	item, err := svc.Propose(ctx, "action-1", "notify", lowRisk(), 0)
	require.NoError(t, err)

	result, err := svc.CheckAndResolve(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, result.Status)
	assert.True(t, result.ResolvedNow)

	// the second check reports the terminal status without transitioning
	result, err = svc.CheckAndResolve(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, result.Status)
	assert.False(t, result.ResolvedNow)

	// an open window stays pending
	item, err = svc.Propose(ctx, "action-2", "notify", lowRisk(), time.Hour)
	require.NoError(t, err)
	result, err = svc.CheckAndResolve(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, result.Status)

	_, err = svc.CheckAndResolve(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVeto(t *testing.T) {
	ctx := context.Background()

	escalated := 0
	svc := New(WithEscalation(func(ctx context.Context, item *Item) error {
		escalated++
		return nil
	}))

	item, err := svc.Propose(ctx, "action-1", "notify", lowRisk(), time.Hour)
	require.NoError(t, err)

	vetoed, err := svc.Veto(ctx, item.ID, "carol", "looks off")
	require.NoError(t, err)
	assert.Equal(t, StatusEscalated, vetoed.Status)
	assert.Len(t, vetoed.Vetoes, 1)
	assert.Equal(t, "carol", vetoed.Vetoes[0].ActorID)
	assert.Equal(t, 1, escalated)

	// vetoing a resolved item is a no-op that reports the terminal state
	again, err := svc.Veto(ctx, item.ID, "dave", "me too")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.Equal(t, StatusEscalated, again.Status)
	assert.Len(t, again.Vetoes, 1)

	// a vetoed item never approves afterwards
	result, err := svc.CheckAndResolve(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, result.ResolvedNow)
}

func TestVetoWithoutEscalation(t *testing.T) {
	ctx := context.Background()
	svc := New()

	item, err := svc.Propose(ctx, "action-1", "notify", lowRisk(), time.Hour)
	require.NoError(t, err)

	vetoed, err := svc.Veto(ctx, item.ID, "carol", "")
	require.NoError(t, err)
	assert.Equal(t, StatusVetoed, vetoed.Status)
}

func TestExpiryTimer(t *testing.T) {
	ctx := context.Background()
	svc := New()

	item, err := svc.Propose(ctx, "action-1", "notify", lowRisk(), 20*time.Millisecond)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		current, err := svc.Get(ctx, item.ID)
		return err == nil && current.Status == StatusApproved
	}, time.Second, 10*time.Millisecond)
}

// A veto racing the expiry timer must yield exactly one terminal resolution,
// never both.
func TestVetoExpiryRace(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 50; round++ {
		svc := New()
		item, err := svc.Propose(ctx, fmt.Sprintf("action-%d", round), "notify", lowRisk(), time.Millisecond)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.Veto(ctx, item.ID, "carol", "race")
		}()
		go func() {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			_, _ = svc.CheckAndResolve(ctx, item.ID)
		}()
		wg.Wait()

		assert.Eventually(t, func() bool {
			current, err := svc.Get(ctx, item.ID)
			if err != nil {
				return false
			}
			return current.Resolved()
		}, time.Second, 5*time.Millisecond)

		current, err := svc.Get(ctx, item.ID)
		require.NoError(t, err)
		switch current.Status {
		case StatusApproved:
			assert.Empty(t, current.Vetoes)
		case StatusVetoed, StatusEscalated:
			assert.Len(t, current.Vetoes, 1)
		default:
			t.Fatalf("round %d: unexpected status %s", round, current.Status)
		}
	}
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	svc := New()

	expired, err := svc.Propose(ctx, "action-1", "notify", lowRisk(), 0)
	require.NoError(t, err)
	open, err := svc.Propose(ctx, "action-2", "notify", lowRisk(), time.Hour)
	require.NoError(t, err)

	resolved, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	current, err := svc.Get(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, current.Status)
	current, err = svc.Get(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, current.Status)
}
