package router

import (
	"time"

	"github.com/viant/guardrail/service/classifier"
)

// ItemKind identifies what kind of gated item a review covers.
type ItemKind string

const (
	KindLock      ItemKind = "lock"
	KindConsensus ItemKind = "consensus"
)

// PendingReview is a routed review task.  Exactly one open review exists per
// gated item at a time.
type PendingReview struct {
	ID          string     `json:"id"`
	ItemID      string     `json:"itemId"`
	ItemKind    ItemKind   `json:"itemKind"`
	ActionType  string     `json:"actionType,omitempty"`
	Group       string     `json:"group"`
	Reviewers   []string   `json:"reviewers,omitempty"` // group membership snapshot at routing time
	CreatedAt   time.Time  `json:"createdAt"`
	EscalatedAt *time.Time `json:"escalatedAt,omitempty"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
}

// Open reports whether the review still awaits a decision.
func (r *PendingReview) Open() bool { return r.ResolvedAt == nil }

// Assigned reports whether the reviewer was part of the routed group snapshot.
func (r *PendingReview) Assigned(reviewerID string) bool {
	for _, candidate := range r.Reviewers {
		if candidate == reviewerID {
			return true
		}
	}
	return false
}

// Rule routes one (action type, risk level) combination to a reviewer group.
// Empty ActionType or Risk matches anything.
type Rule struct {
	ActionType string               `json:"actionType,omitempty" yaml:"actionType,omitempty"`
	Risk       classifier.RiskLevel `json:"risk,omitempty" yaml:"risk,omitempty"`
	Group      string               `json:"group" yaml:"group"`
}

// Policy is the static routing table.  Lookup walks rules in order and falls
// back to the catch-all DefaultGroup.
type Policy struct {
	Rules        []Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
	DefaultGroup string `json:"defaultGroup,omitempty" yaml:"defaultGroup,omitempty"`

	// EscalateGroup receives reviews unresolved past EscalateAfter.  One
	// re-route maximum, to avoid notification storms.
	EscalateGroup string        `json:"escalateGroup,omitempty" yaml:"escalateGroup,omitempty"`
	EscalateAfter time.Duration `json:"escalateAfter,omitempty" yaml:"escalateAfter,omitempty"`
}

// DefaultPolicy returns the built-in routing table.
func DefaultPolicy() *Policy {
	return &Policy{
		Rules: []Rule{
			{Risk: classifier.RiskCritical, Group: "admins"},
			{Risk: classifier.RiskHigh, Group: "seniors"},
		},
		DefaultGroup:  "reviewers",
		EscalateGroup: "admins",
		EscalateAfter: 30 * time.Minute,
	}
}

// GroupFor resolves the reviewer group for the supplied action type and risk
// level.
func (p *Policy) GroupFor(actionType string, risk classifier.RiskLevel) string {
	if p == nil {
		return ""
	}
	for _, rule := range p.Rules {
		if rule.ActionType != "" && rule.ActionType != actionType {
			continue
		}
		if rule.Risk != "" && rule.Risk != risk {
			continue
		}
		return rule.Group
	}
	return p.DefaultGroup
}

// Event envelope published on routing transitions.
type Event struct {
	Topic   string            `json:"topic"`
	Data    *PendingReview    `json:"data"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Standard event topics.
const (
	TopicReviewRouted    = "review.routed"
	TopicReviewEscalated = "review.escalated"
	TopicReviewResolved  = "review.resolved"
)
