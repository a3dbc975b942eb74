package router

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/viant/guardrail/internal/clock"
	"github.com/viant/guardrail/internal/idgen"
	"github.com/viant/guardrail/internal/keyed"
	"github.com/viant/guardrail/service/audit"
	"github.com/viant/guardrail/service/classifier"
	"github.com/viant/guardrail/service/dao"
	"github.com/viant/guardrail/service/dao/store"
	"github.com/viant/guardrail/service/messaging"
	qmem "github.com/viant/guardrail/service/messaging/memory"
)

// Service routes gated items to reviewer groups.
type Service struct {
	reviews dao.Service[string, PendingReview]

	perItem *keyed.Mutex[string]

	openMu sync.Mutex
	open   map[string]string // item id -> review id

	registry *Registry
	policy   *Policy
	events   messaging.Queue[Event]
	recorder audit.Recorder
}

type Option func(*Service)

// WithAuditRecorder makes the router append an audit entry per transition.
func WithAuditRecorder(recorder audit.Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

// WithPolicy overrides the routing table.
func WithPolicy(policy *Policy) Option {
	return func(s *Service) {
		if policy != nil {
			s.policy = policy
		}
	}
}

// WithQueue overrides the routing event queue.
func WithQueue(queue messaging.Queue[Event]) Option {
	return func(s *Service) { s.events = queue }
}

func reviewKey(r *PendingReview) string { return r.ID }

// New creates a router over the supplied reviewer registry.
func New(registry *Registry, options ...Option) *Service {
	ret := &Service{
		reviews:  store.NewMemoryStore[string, PendingReview](reviewKey),
		perItem:  keyed.New[string](),
		open:     make(map[string]string),
		registry: registry,
		policy:   DefaultPolicy(),
		events:   qmem.NewQueue[Event](qmem.DefaultConfig()),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Route creates a pending review for the supplied item, selecting the
// reviewer group from the routing policy.  Routing is idempotent per item id:
// while a review is open the existing one is returned.
func (s *Service) Route(ctx context.Context, itemID string, kind ItemKind, actionType string, risk classifier.RiskLevel) (*PendingReview, error) {
	if itemID == "" {
		return nil, dao.ErrInvalidID
	}

	s.perItem.Lock(itemID)
	defer s.perItem.Unlock(itemID)

	s.openMu.Lock()
	existingID, isOpen := s.open[itemID]
	s.openMu.Unlock()
	if isOpen {
		if existing, err := s.reviews.Load(ctx, existingID); err == nil && existing != nil {
			return existing, nil
		}
	}

	group := s.policy.GroupFor(actionType, risk)
	members := s.registry.ByRole(group)
	if len(members) == 0 {
		return nil, fmt.Errorf("group %q for action %q risk %s is empty: %w", group, actionType, risk, ErrNoReviewers)
	}

	review := &PendingReview{
		ID:         idgen.New(),
		ItemID:     itemID,
		ItemKind:   kind,
		ActionType: actionType,
		Group:      group,
		Reviewers:  members,
		CreatedAt:  clock.Now(),
	}
	if err := s.reviews.Save(ctx, review); err != nil {
		return nil, err
	}
	s.openMu.Lock()
	s.open[itemID] = review.ID
	s.openMu.Unlock()

	_ = s.events.Publish(ctx, &Event{Topic: TopicReviewRouted, Data: review})
	s.record(ctx, review, "routed", "", fmt.Sprintf("assigned to group %s", group))
	return review, nil
}

// Resolve closes the review for the supplied item.  Resolving an already
// closed review is a no-op.
func (s *Service) Resolve(ctx context.Context, itemID, reviewerID string) (*PendingReview, error) {
	s.perItem.Lock(itemID)
	defer s.perItem.Unlock(itemID)

	s.openMu.Lock()
	reviewID, isOpen := s.open[itemID]
	s.openMu.Unlock()
	if !isOpen {
		return nil, ErrNotFound
	}
	review, err := s.reviews.Load(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, ErrNotFound
	}
	if review.Open() {
		now := clock.Now()
		review.ResolvedAt = &now
		if err := s.reviews.Save(ctx, review); err != nil {
			return nil, err
		}
		s.openMu.Lock()
		delete(s.open, itemID)
		s.openMu.Unlock()
		_ = s.events.Publish(ctx, &Event{Topic: TopicReviewResolved, Data: review})
		s.record(ctx, review, "resolved", reviewerID, "")
	}
	return review, nil
}

// Get returns the review by its own id, or ErrNotFound.
func (s *Service) Get(ctx context.Context, reviewID string) (*PendingReview, error) {
	review, err := s.reviews.Load(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, ErrNotFound
	}
	return review, nil
}

// Lookup returns the open review for the supplied item id, or ErrNotFound.
func (s *Service) Lookup(ctx context.Context, itemID string) (*PendingReview, error) {
	s.openMu.Lock()
	reviewID, isOpen := s.open[itemID]
	s.openMu.Unlock()
	if !isOpen {
		return nil, ErrNotFound
	}
	review, err := s.reviews.Load(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, ErrNotFound
	}
	return review, nil
}

// List returns all reviews, open and resolved.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*PendingReview, error) {
	return s.reviews.List(ctx, parameters...)
}

// SweepOverdue re-routes reviews unresolved past the policy's EscalateAfter
// to the escalation group.  Each review is escalated at most once.  It
// returns the number of escalated reviews.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	if s.policy.EscalateAfter <= 0 || s.policy.EscalateGroup == "" {
		return 0, nil
	}
	all, err := s.reviews.List(ctx)
	if err != nil {
		return 0, err
	}
	escalated := 0
	now := clock.Now()
	for _, candidate := range all {
		if !candidate.Open() || candidate.EscalatedAt != nil {
			continue
		}
		if now.Sub(candidate.CreatedAt) < s.policy.EscalateAfter {
			continue
		}
		if err := s.escalate(ctx, candidate.ItemID); err != nil {
			log.Printf("router: escalation of item %s failed: %v", candidate.ItemID, err)
			continue
		}
		escalated++
	}
	return escalated, nil
}

// StartSweeper runs SweepOverdue on the supplied interval until ctx is
// cancelled or the returned stop function is called.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = time.Minute
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if _, err := s.SweepOverdue(ctx); err != nil {
					log.Printf("router: sweep failed: %v", err)
				}
			}
		}
	}()
	return func() { close(done) }
}

func (s *Service) escalate(ctx context.Context, itemID string) error {
	s.perItem.Lock(itemID)
	defer s.perItem.Unlock(itemID)

	s.openMu.Lock()
	reviewID, isOpen := s.open[itemID]
	s.openMu.Unlock()
	if !isOpen {
		return nil
	}
	review, err := s.reviews.Load(ctx, reviewID)
	if err != nil || review == nil || !review.Open() || review.EscalatedAt != nil {
		return err
	}

	members := s.registry.ByRole(s.policy.EscalateGroup)
	if len(members) == 0 {
		return fmt.Errorf("escalation group %q is empty: %w", s.policy.EscalateGroup, ErrNoReviewers)
	}
	now := clock.Now()
	review.Group = s.policy.EscalateGroup
	review.Reviewers = members
	review.EscalatedAt = &now
	if err := s.reviews.Save(ctx, review); err != nil {
		return err
	}
	_ = s.events.Publish(ctx, &Event{Topic: TopicReviewEscalated, Data: review})
	s.record(ctx, review, "escalated", "", fmt.Sprintf("re-routed to group %s", s.policy.EscalateGroup))
	return nil
}

// Queue exposes the routing event queue.
func (s *Service) Queue() messaging.Queue[Event] { return s.events }

// Registry exposes the reviewer registry.
func (s *Service) Registry() *Registry { return s.registry }

func (s *Service) record(ctx context.Context, review *PendingReview, transition, actor, reason string) {
	if s.recorder == nil {
		return
	}
	_ = s.recorder.Record(ctx, &audit.Entry{
		EntityID:   review.ID,
		EntityKind: "review",
		Transition: transition,
		Actor:      actor,
		Reason:     reason,
	})
}
