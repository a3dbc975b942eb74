package guardrail

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/viant/guardrail/internal/clock"
	"github.com/viant/guardrail/internal/idgen"
	"github.com/viant/guardrail/policy"
	"github.com/viant/guardrail/progress"
	"github.com/viant/guardrail/service/audit"
	"github.com/viant/guardrail/service/classifier"
	"github.com/viant/guardrail/service/consensus"
	"github.com/viant/guardrail/service/guard"
	"github.com/viant/guardrail/service/lock"
	lmemory "github.com/viant/guardrail/service/lock/memory"
	"github.com/viant/guardrail/service/retry"
	"github.com/viant/guardrail/service/router"
	"github.com/viant/guardrail/tracing"
)

// Outcome of a submission.
type Outcome string

const (
	OutcomeAllowed          Outcome = "allowed"
	OutcomeLocked           Outcome = "locked"
	OutcomePendingConsensus Outcome = "pendingConsensus"
	OutcomeDenied           Outcome = "denied"
)

// Submission is the result of SubmitAction.  Every denial or lock carries a
// human-readable rationale, never a bare code.
type Submission struct {
	ActionID        string                    `json:"actionId"`
	Outcome         Outcome                   `json:"outcome"`
	LockID          string                    `json:"lockId,omitempty"`
	ConsensusItemID string                    `json:"consensusItemId,omitempty"`
	ReviewID        string                    `json:"reviewId,omitempty"`
	Classification  classifier.Classification `json:"classification"`
	Rationale       string                    `json:"rationale"`
}

// Service is the composed policy engine façade chaining
// guard → classifier → (lock+router | consensus).
type Service struct {
	config    *Config
	trail     *audit.Service
	guard     *guard.Service
	locks     lock.Service
	registry  *router.Registry
	router    *router.Service
	consensus *consensus.Service
	retries   *retry.Handler
	tracker   *progress.Progress
}

// New assembles an engine.  Components not supplied via options are created
// with in-memory defaults wired to a shared audit trail.
func New(options ...Option) *Service {
	ret := &Service{}
	ret.init(options)
	return ret
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()
}

func (s *Service) ensureBaseSetup() {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if s.trail == nil {
		s.trail = audit.New()
	}
	if s.guard == nil {
		s.guard = guard.New(s.config.Guard, guard.WithAuditRecorder(s.trail))
	}
	if s.registry == nil {
		s.registry = router.NewRegistry()
	}
	if s.router == nil {
		s.router = router.New(s.registry,
			router.WithPolicy(s.config.Routing),
			router.WithAuditRecorder(s.trail))
	}
	if s.locks == nil {
		s.locks = lmemory.New(
			lmemory.WithRequirementPolicy(s.config.Requirements),
			lmemory.WithRoleResolver(s.registry.Roles),
			lmemory.WithAuditRecorder(s.trail))
	}
	if s.consensus == nil {
		s.consensus = consensus.New(
			consensus.WithDefaultWindow(s.config.Consensus.DefaultWindow),
			consensus.WithAuditRecorder(s.trail),
			consensus.WithEscalation(func(ctx context.Context, item *consensus.Item) error {
				_, err := s.router.Route(ctx, item.ID, router.KindConsensus, item.ActionType, item.Risk)
				return err
			}))
	}
	if s.retries == nil {
		s.retries = retry.New(s.config.Retry, retry.WithAuditRecorder(s.trail))
	}
	if s.tracker == nil {
		s.tracker = progress.New(idgen.New(), clock.Now())
	}
}

// SubmitAction is the composed entry point for a proposed agent action.  The
// anti-abuse guard runs first, then the classifier; the verdict selects the
// lock+approval path, the passive consensus path, or immediate execution.
func (s *Service) SubmitAction(ctx context.Context, actor, actionType string, actionCtx classifier.ActionContext) (*Submission, error) {
	ctx, span := tracing.StartSpan(ctx, "guardrail.SubmitAction")
	submission, err := s.submitAction(ctx, actor, actionType, actionCtx)
	span.WithAttributes(map[string]string{"actor": actor, "actionType": actionType})
	tracing.EndSpan(span, err)
	return submission, err
}

func (s *Service) submitAction(ctx context.Context, actor, actionType string, actionCtx classifier.ActionContext) (*Submission, error) {
	if actor == "" || actionType == "" {
		return nil, fmt.Errorf("actor and actionType are required")
	}
	actionID := idgen.New()
	s.tracker.Update(progress.Delta{Submitted: 1})

	// coarse declarative filter, consulted before anything else
	if p := policy.FromContext(ctx); !p.IsAllowed(actionType) {
		return s.deny(ctx, actor, actionID,
			fmt.Sprintf("action %q is blocked by submission policy", actionType))
	}

	verdict, err := s.guard.Validate(ctx, actor, guard.Signal{ActionType: actionType})
	if err != nil {
		return nil, err
	}
	if !verdict.Allowed() {
		return s.deny(ctx, actor, actionID, verdict.Rationale)
	}

	c := classifier.Classify(actionType, actionCtx, s.config.Classifier)
	s.guard.Enrich(actor, c.Level, c.Penalty)

	// a flagged actor is forced through reviewer routing regardless of the
	// classifier's own verdict
	if c.Locked || verdict.Verdict == guard.VerdictFlag {
		return s.lockAndRoute(ctx, actor, actionID, actionType, c, verdict)
	}

	if c.Level.Rank() >= s.consensusMinLevel().Rank() {
		item, err := s.consensus.Propose(ctx, actionID, actionType, c, -1)
		if err != nil {
			return nil, err
		}
		s.tracker.Update(progress.Delta{Consensus: 1})
		return &Submission{
			ActionID:        actionID,
			Outcome:         OutcomePendingConsensus,
			ConsensusItemID: item.ID,
			Classification:  c,
			Rationale:       c.Rationale,
		}, nil
	}

	s.tracker.Update(progress.Delta{Allowed: 1})
	s.recordAction(ctx, actionID, "allowed", actor, c.Rationale)
	return &Submission{
		ActionID:       actionID,
		Outcome:        OutcomeAllowed,
		Classification: c,
		Rationale:      c.Rationale,
	}, nil
}

func (s *Service) lockAndRoute(ctx context.Context, actor, actionID, actionType string, c classifier.Classification, verdict *guard.Result) (*Submission, error) {
	locked, err := s.locks.Create(ctx, actionID, actionType, c)
	if err != nil {
		return nil, err
	}
	review, err := s.router.Route(ctx, locked.ID, router.KindLock, actionType, c.Level)
	if err != nil {
		// the lock must not dangle without a review: cancel it and leave the
		// configuration gap on the trail before surfacing the error
		if _, cancelErr := s.locks.Cancel(ctx, locked.ID, fmt.Sprintf("review routing failed: %v", err)); cancelErr != nil {
			log.Printf("guardrail: failed to cancel unroutable lock %v: %v", locked.ID, cancelErr)
		}
		s.recordAction(ctx, actionID, "routingFailed", actor, err.Error())
		return nil, err
	}
	delta := progress.Delta{Locked: 1}
	rationale := c.Rationale
	if verdict.Verdict == guard.VerdictFlag {
		delta.Flagged = 1
		rationale = fmt.Sprintf("%s; %s", verdict.Rationale, c.Rationale)
	}
	s.tracker.Update(delta)
	return &Submission{
		ActionID:       actionID,
		Outcome:        OutcomeLocked,
		LockID:         locked.ID,
		ReviewID:       review.ID,
		Classification: c,
		Rationale:      rationale,
	}, nil
}

func (s *Service) deny(ctx context.Context, actor, actionID, rationale string) (*Submission, error) {
	s.tracker.Update(progress.Delta{Denied: 1})
	s.recordAction(ctx, actionID, "denied", actor, rationale)
	return &Submission{
		ActionID:  actionID,
		Outcome:   OutcomeDenied,
		Rationale: rationale,
	}, nil
}

// RecordReviewDecision bridges an external reviewer response into the lock
// manager and router.  For lock reviews the decision feeds the approval
// requirement; the review resolves once the lock reaches a terminal status.
func (s *Service) RecordReviewDecision(ctx context.Context, reviewID, reviewerID string, decision lock.Decision, reason string) error {
	review, err := s.router.Get(ctx, reviewID)
	if err != nil {
		return err
	}
	switch review.ItemKind {
	case router.KindLock:
		locked, err := s.locks.RecordDecision(ctx, review.ItemID, reviewerID, decision, reason)
		if err != nil {
			return err
		}
		if locked.Resolved() {
			if _, err := s.router.Resolve(ctx, review.ItemID, reviewerID); err != nil && !errors.Is(err, router.ErrNotFound) {
				return err
			}
		}
		return nil
	case router.KindConsensus:
		if !s.reviewerEligible(review, reviewerID) {
			return fmt.Errorf("reviewer %q on review %v: %w", reviewerID, reviewID, router.ErrNotAssigned)
		}
		_ = s.recordAction(ctx, review.ItemID, "reviewDecision", reviewerID, reason)
		if _, err := s.router.Resolve(ctx, review.ItemID, reviewerID); err != nil && !errors.Is(err, router.ErrNotFound) {
			return err
		}
		return nil
	}
	return fmt.Errorf("unknown review kind %q", review.ItemKind)
}

// RegisterReviewer adds a reviewer with the supplied roles.
func (s *Service) RegisterReviewer(reviewerID string, roles ...string) {
	s.registry.Add(reviewerID, roles...)
}

// DeregisterReviewer removes a reviewer.
func (s *Service) DeregisterReviewer(reviewerID string) {
	s.registry.Remove(reviewerID)
}

// ExecuteWithRetry runs fn under bounded, backed-off retries using the
// engine's default retry configuration.  Executors use it for the actual
// side-effecting action once cleared.
func (s *Service) ExecuteWithRetry(ctx context.Context, name string, fn func(ctx context.Context) error) (*retry.Task, error) {
	ctx, span := tracing.StartSpan(ctx, "guardrail.ExecuteWithRetry")
	task, err := s.retries.Do(ctx, name, fn)
	tracing.EndSpan(span, err)
	return task, err
}

// Audit exposes the read-only trail for observers.
func (s *Service) Audit() *audit.Service { return s.trail }

// Locks exposes the lock manager.
func (s *Service) Locks() lock.Service { return s.locks }

// Router exposes the approval router.
func (s *Service) Router() *router.Service { return s.router }

// Consensus exposes the passive consensus manager.
func (s *Service) Consensus() *consensus.Service { return s.consensus }

// Guard exposes the anti-abuse guard.
func (s *Service) Guard() *guard.Service { return s.guard }

// Retry exposes the retry handler.
func (s *Service) Retry() *retry.Handler { return s.retries }

// Progress returns a snapshot of the engine counters.
func (s *Service) Progress() progress.Stats { return s.tracker.Snapshot() }

// reviewerEligible accepts a reviewer from the routed snapshot or any current
// member of the review's group, so reviewers registered after routing still
// count.
func (s *Service) reviewerEligible(review *router.PendingReview, reviewerID string) bool {
	if review.Assigned(reviewerID) {
		return true
	}
	for _, role := range s.registry.Roles(reviewerID) {
		if role == review.Group {
			return true
		}
	}
	return false
}

func (s *Service) consensusMinLevel() classifier.RiskLevel {
	if s.config.Consensus.MinLevel != "" {
		return s.config.Consensus.MinLevel
	}
	return classifier.RiskLow
}

func (s *Service) recordAction(ctx context.Context, actionID, transition, actor, reason string) error {
	return s.trail.Record(ctx, &audit.Entry{
		EntityID:   actionID,
		EntityKind: "action",
		Transition: transition,
		Actor:      actor,
		Reason:     reason,
	})
}
