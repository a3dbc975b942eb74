package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/viant/guardrail/internal/clock"
	"github.com/viant/guardrail/service/audit"
	"github.com/viant/guardrail/service/classifier"
)

// Verdict of a single validation.
type Verdict string

const (
	VerdictAllow Verdict = "allow"
	VerdictFlag  Verdict = "flag"
	VerdictDeny  Verdict = "deny"
)

// Signal is one observed actor behaviour event.
type Signal struct {
	ActionType string
	Risk       classifier.RiskLevel
	Penalty    float64
}

// Result carries the verdict together with a human-readable rationale.
type Result struct {
	Verdict   Verdict `json:"verdict"`
	Rationale string  `json:"rationale"`
}

// Allowed reports whether the submission may proceed (allow or flag).
func (r *Result) Allowed() bool { return r.Verdict != VerdictDeny }

// Config holds the rate-limit thresholds and window sizes.
type Config struct {
	// Rate and Burst parameterise the per-actor token bucket
	// (events per second / bucket capacity).
	Rate  float64 `json:"rate,omitempty" yaml:"rate,omitempty"`
	Burst int     `json:"burst,omitempty" yaml:"burst,omitempty"`

	// Window is the sliding horizon over which signals are kept; older
	// entries are pruned lazily on access.
	Window time.Duration `json:"window,omitempty" yaml:"window,omitempty"`

	// FlagHighRiskCount flags the actor once this many high-or-critical
	// signals land within the window.
	FlagHighRiskCount int `json:"flagHighRiskCount,omitempty" yaml:"flagHighRiskCount,omitempty"`

	// DenyPenaltySum denies the actor once the accumulated penalty within
	// the window reaches this sum.
	DenyPenaltySum float64 `json:"denyPenaltySum,omitempty" yaml:"denyPenaltySum,omitempty"`
}

// DefaultConfig returns the built-in anti-abuse thresholds.
func DefaultConfig() *Config {
	return &Config{
		Rate:              1,
		Burst:             10,
		Window:            5 * time.Minute,
		FlagHighRiskCount: 3,
		DenyPenaltySum:    500,
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Rate <= 0 || c.Burst <= 0 {
		return fmt.Errorf("guard: rate and burst must be > 0")
	}
	if c.Window <= 0 {
		return fmt.Errorf("guard: window must be > 0")
	}
	return nil
}

type signalEvent struct {
	at      time.Time
	risk    classifier.RiskLevel
	penalty float64
}

// actorState is the per-actor signal history and bucket level.
type actorState struct {
	limiter *rate.Limiter
	events  []signalEvent
}

// Service evaluates submissions against per-actor history.
type Service struct {
	config   *Config
	recorder audit.Recorder

	mu     sync.Mutex
	actors map[string]*actorState
}

type Option func(*Service)

// WithAuditRecorder makes the guard append an audit entry for every flag and
// deny verdict.
func WithAuditRecorder(recorder audit.Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

// New creates an anti-abuse guard.
func New(config *Config, options ...Option) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	ret := &Service{
		config: config,
		actors: make(map[string]*actorState),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Validate updates the actor's history with the signal and returns the
// verdict.  Excess submissions within the window are denied; the verdict
// returns to allow once the sliding window clears.
func (s *Service) Validate(ctx context.Context, actorID string, signal Signal) (*Result, error) {
	if actorID == "" {
		return nil, fmt.Errorf("guard: empty actor id")
	}
	now := clock.Now()

	s.mu.Lock()
	state, ok := s.actors[actorID]
	if !ok {
		state = &actorState{limiter: rate.NewLimiter(rate.Limit(s.config.Rate), s.config.Burst)}
		s.actors[actorID] = state
	}
	state.prune(now, s.config.Window)
	state.events = append(state.events, signalEvent{at: now, risk: signal.Risk, penalty: signal.Penalty})

	allowedByRate := state.limiter.AllowN(now, 1)
	highRisk := state.highRiskCount()
	penaltySum := state.penaltySum()
	s.mu.Unlock()

	result := &Result{Verdict: VerdictAllow, Rationale: fmt.Sprintf("actor %s within limits", actorID)}
	switch {
	case !allowedByRate:
		result.Verdict = VerdictDeny
		result.Rationale = fmt.Sprintf("actor %s exceeded %g submissions/s (burst %d)", actorID, s.config.Rate, s.config.Burst)
	case s.config.DenyPenaltySum > 0 && penaltySum >= s.config.DenyPenaltySum:
		result.Verdict = VerdictDeny
		result.Rationale = fmt.Sprintf("actor %s accumulated penalty %g over the last %s", actorID, penaltySum, s.config.Window)
	case s.config.FlagHighRiskCount > 0 && highRisk >= s.config.FlagHighRiskCount:
		result.Verdict = VerdictFlag
		result.Rationale = fmt.Sprintf("actor %s issued %d high-risk actions within %s", actorID, highRisk, s.config.Window)
	}

	if result.Verdict != VerdictAllow && s.recorder != nil {
		_ = s.recorder.Record(ctx, &audit.Entry{
			EntityID:   actorID,
			EntityKind: "signal",
			Transition: string(result.Verdict),
			Actor:      actorID,
			Reason:     result.Rationale,
		})
	}
	return result, nil
}

// Enrich back-fills the classification outcome onto the actor's most recent
// signal so that pattern detection sees real risk levels.  The guard runs
// before the classifier, so Validate records the signal with an unknown risk
// and the engine enriches it once the verdict is known.
func (s *Service) Enrich(actorID string, risk classifier.RiskLevel, penalty float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.actors[actorID]
	if !ok || len(state.events) == 0 {
		return
	}
	last := &state.events[len(state.events)-1]
	last.risk = risk
	last.penalty = penalty
}

// History returns a copy of the actor's signal timestamps still inside the
// window, for display and audit.
func (s *Service) History(actorID string) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.actors[actorID]
	if !ok {
		return nil
	}
	state.prune(clock.Now(), s.config.Window)
	out := make([]time.Time, 0, len(state.events))
	for _, event := range state.events {
		out = append(out, event.at)
	}
	return out
}

func (a *actorState) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	kept := a.events[:0]
	for _, event := range a.events {
		if event.at.After(cutoff) {
			kept = append(kept, event)
		}
	}
	a.events = kept
}

func (a *actorState) highRiskCount() int {
	count := 0
	for _, event := range a.events {
		if event.risk.AtLeast(classifier.RiskHigh) {
			count++
		}
	}
	return count
}

func (a *actorState) penaltySum() float64 {
	sum := 0.0
	for _, event := range a.events {
		sum += event.penalty
	}
	return sum
}
