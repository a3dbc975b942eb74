package memory

import (
	"github.com/viant/guardrail/service/audit"
	lock "github.com/viant/guardrail/service/lock"
	"github.com/viant/guardrail/service/messaging"
)

type Option func(*service)

// WithAuditRecorder makes the manager append an audit entry for every lock
// transition.
func WithAuditRecorder(recorder audit.Recorder) Option {
	return func(s *service) { s.recorder = recorder }
}

// WithRequirementPolicy overrides how approval requirements are derived from
// risk levels.
func WithRequirementPolicy(policy *lock.RequirementPolicy) Option {
	return func(s *service) {
		if policy != nil {
			s.requirements = policy
		}
	}
}

// WithRoleResolver supplies a reviewer role lookup.  When set, RecordDecision
// rejects reviewers holding none of the roles the lock's requirement names.
func WithRoleResolver(resolver func(reviewerID string) []string) Option {
	return func(s *service) { s.roles = resolver }
}

// WithQueue overrides the lifecycle event queue.
func WithQueue(queue messaging.Queue[lock.Event]) Option {
	return func(s *service) { s.events = queue }
}
