package lock

import (
	"context"

	"github.com/viant/guardrail/service/classifier"
	"github.com/viant/guardrail/service/dao"
	"github.com/viant/guardrail/service/messaging"
)

// Service defines the lock manager interface.
type Service interface {
	// Create places a lock on the supplied action.  It fails with
	// ErrAlreadyLocked when an open lock exists for the same action id.
	Create(ctx context.Context, actionID, actionType string, c classifier.Classification) (*LockedAction, error)

	// RecordDecision appends a reviewer decision.  A reject immediately moves
	// the lock to StatusRejected regardless of accumulated approvals.
	RecordDecision(ctx context.Context, lockID, reviewerID string, decision Decision, reason string) (*LockedAction, error)

	// AttemptUnlock transitions the lock to StatusUnlocked when approvals meet
	// the requirement.
	AttemptUnlock(ctx context.Context, lockID string) (*UnlockResult, error)

	// Cancel force-rejects an open lock whose review cannot proceed, e.g. when
	// no reviewers are available for routing.
	Cancel(ctx context.Context, lockID, reason string) (*LockedAction, error)

	// Get returns the lock by id, or ErrNotFound.
	Get(ctx context.Context, lockID string) (*LockedAction, error)

	// List returns locks matching the supplied parameters (e.g. State).
	List(ctx context.Context, parameters ...*dao.Parameter) ([]*LockedAction, error)

	// Queue exposes the lifecycle event queue.
	Queue() messaging.Queue[Event]
}

// RequirementPolicy derives the approval requirement from a risk level.
type RequirementPolicy struct {
	ByLevel map[classifier.RiskLevel]Requirement `json:"byLevel,omitempty" yaml:"byLevel,omitempty"`
	Default Requirement                          `json:"default,omitempty" yaml:"default,omitempty"`
}

// DefaultRequirementPolicy returns the built-in mapping - higher risk needs
// more approvals from more senior roles.
func DefaultRequirementPolicy() *RequirementPolicy {
	return &RequirementPolicy{
		ByLevel: map[classifier.RiskLevel]Requirement{
			classifier.RiskHigh:     {Count: 2, Roles: []string{"seniors"}},
			classifier.RiskCritical: {Count: 3, Roles: []string{"admins"}},
		},
		Default: Requirement{Count: 1, Roles: []string{"reviewers"}},
	}
}

// RequirementFor resolves the requirement for the supplied level.
func (p *RequirementPolicy) RequirementFor(level classifier.RiskLevel) Requirement {
	if p == nil {
		return DefaultRequirementPolicy().RequirementFor(level)
	}
	if requirement, ok := p.ByLevel[level]; ok {
		return requirement
	}
	return p.Default
}
