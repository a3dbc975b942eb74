package consensus

import (
	"time"

	"github.com/viant/guardrail/service/classifier"
)

// Status of a consensus item.  Transitions are one-way:
// pending → approved | vetoed, vetoed → escalated.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusVetoed    Status = "vetoed"
	StatusEscalated Status = "escalated"
)

// VetoRecord captures one veto event.  Append-only.
type VetoRecord struct {
	ActorID   string    `json:"actorId"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Item is an opt-out proposal with a timed window.
type Item struct {
	ID         string               `json:"id"`
	ActionID   string               `json:"actionId"`
	ActionType string               `json:"actionType"`
	Risk       classifier.RiskLevel `json:"risk"`
	OpenedAt   time.Time            `json:"openedAt"`
	Deadline   time.Time            `json:"deadline"`
	Status     Status               `json:"status"`
	Vetoes     []*VetoRecord        `json:"vetoes,omitempty"`
	Rationale  string               `json:"rationale,omitempty"`
	ResolvedAt *time.Time           `json:"resolvedAt,omitempty"`
}

// Resolved reports whether the item reached a terminal status.
func (i *Item) Resolved() bool { return i.Status != StatusPending }

// CheckResult reports the outcome of an idempotent resolution check.
type CheckResult struct {
	Status      Status `json:"status"`
	ResolvedNow bool   `json:"resolvedNow"` // true when this call performed the transition
}

// Event envelope published on consensus transitions.
type Event struct {
	Topic   string            `json:"topic"`
	Data    *Item             `json:"data"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Standard event topics.
const (
	TopicConsensusOpened    = "consensus.opened"
	TopicConsensusApproved  = "consensus.approved"
	TopicConsensusVetoed    = "consensus.vetoed"
	TopicConsensusEscalated = "consensus.escalated"
)
