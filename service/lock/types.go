package lock

import (
	"time"

	"github.com/viant/guardrail/service/classifier"
)

// Status of a locked action.  Unlocked and rejected are terminal.
type Status string

const (
	StatusLocked   Status = "locked"
	StatusUnlocked Status = "unlocked"
	StatusRejected Status = "rejected"
)

// Decision recorded by a reviewer.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Requirement describes how much approval a lock needs before it may be
// unlocked.
type Requirement struct {
	Count int      `json:"count" yaml:"count"`
	Roles []string `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// ApprovalRecord is one reviewer's decision.  A reviewer records at most one
// decision per lock.
type ApprovalRecord struct {
	ReviewerID string    `json:"reviewerId"`
	Decision   Decision  `json:"decision"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// LockedAction is a dangerous action awaiting clearance.  Once it leaves
// StatusLocked the record is immutable.
type LockedAction struct {
	ID          string               `json:"id"`
	ActionID    string               `json:"actionId"`
	ActionType  string               `json:"actionType"`
	Risk        classifier.RiskLevel `json:"risk"`
	Requirement Requirement          `json:"requirement"`
	Status      Status               `json:"status"`
	Approvals   []*ApprovalRecord    `json:"approvals,omitempty"` // arrival order
	Rationale   string               `json:"rationale,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
	ResolvedAt  *time.Time           `json:"resolvedAt,omitempty"`
}

// ApprovalCount returns the number of recorded approve decisions.
func (l *LockedAction) ApprovalCount() int {
	count := 0
	for _, record := range l.Approvals {
		if record.Decision == DecisionApprove {
			count++
		}
	}
	return count
}

// Resolved reports whether the lock reached a terminal status.
func (l *LockedAction) Resolved() bool {
	return l.Status != StatusLocked
}

// Event envelope published on every lock transition.
type Event struct {
	Topic   string            `json:"topic"`
	Data    *LockedAction     `json:"data"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Standard event topics.
const (
	TopicLockCreated  = "lock.created"
	TopicLockApproved = "lock.approved"
	TopicLockRejected = "lock.rejected"
	TopicLockUnlocked = "lock.unlocked"
)

// UnlockOutcome distinguishes the possible results of an unlock attempt.
type UnlockOutcome string

const (
	OutcomeUnlocked        UnlockOutcome = "unlocked"
	OutcomeAlreadyUnlocked UnlockOutcome = "alreadyUnlocked"
	OutcomeInsufficient    UnlockOutcome = "insufficient"
	OutcomeRejected        UnlockOutcome = "rejected"
)

// UnlockResult reports the outcome of AttemptUnlock together with the counts
// that produced it.
type UnlockResult struct {
	Outcome   UnlockOutcome `json:"outcome"`
	Approvals int           `json:"approvals"`
	Required  int           `json:"required"`
}
