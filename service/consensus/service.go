package consensus

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/viant/guardrail/internal/clock"
	"github.com/viant/guardrail/internal/idgen"
	"github.com/viant/guardrail/internal/keyed"
	"github.com/viant/guardrail/service/audit"
	"github.com/viant/guardrail/service/classifier"
	"github.com/viant/guardrail/service/dao"
	"github.com/viant/guardrail/service/dao/criteria"
	"github.com/viant/guardrail/service/dao/store"
	"github.com/viant/guardrail/service/messaging"
	qmem "github.com/viant/guardrail/service/messaging/memory"
)

// EscalateFunc hands a vetoed item to the approval router for full review.
type EscalateFunc func(ctx context.Context, item *Item) error

// Service manages passive consensus items and their opt-out windows.
type Service struct {
	items dao.Service[string, Item]

	// single-writer per item id - the authoritative resolution step
	perItem *keyed.Mutex[string]

	timerMu sync.Mutex
	timers  map[string]*time.Timer

	defaultWindow time.Duration
	escalate      EscalateFunc
	events        messaging.Queue[Event]
	recorder      audit.Recorder
}

type Option func(*Service)

// WithAuditRecorder makes the manager append an audit entry per transition.
func WithAuditRecorder(recorder audit.Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

// WithEscalation sets the callback invoked when a vetoed item needs full
// review.
func WithEscalation(escalate EscalateFunc) Option {
	return func(s *Service) { s.escalate = escalate }
}

// WithDefaultWindow sets the window used when Propose receives a
// non-positive duration.
func WithDefaultWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.defaultWindow = window
		}
	}
}

// WithQueue overrides the lifecycle event queue.
func WithQueue(queue messaging.Queue[Event]) Option {
	return func(s *Service) { s.events = queue }
}

func itemKey(i *Item) string { return i.ID }

// New creates a consensus manager.
func New(options ...Option) *Service {
	ret := &Service{
		items:         store.NewMemoryStore[string, Item](itemKey),
		perItem:       keyed.New[string](),
		timers:        make(map[string]*time.Timer),
		defaultWindow: 15 * time.Minute,
		events:        qmem.NewQueue[Event](qmem.DefaultConfig()),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// CanAutoApprove reports whether the classification is eligible for the
// passive path at all.  At or above the lock threshold Propose must be
// rejected in favour of the full lock and approval path.
func CanAutoApprove(c classifier.Classification) bool { return !c.Locked }

// Propose opens an opt-out window for the supplied action.  A zero window
// resolves on the first CheckAndResolve call.
func (s *Service) Propose(ctx context.Context, actionID, actionType string, c classifier.Classification, window time.Duration) (*Item, error) {
	if actionID == "" {
		return nil, dao.ErrInvalidID
	}
	if !CanAutoApprove(c) {
		return nil, ErrNotEligible
	}
	// an explicit zero keeps a zero-duration window (resolved by the first
	// CheckAndResolve); callers wanting the configured default pass a
	// negative duration
	if window < 0 {
		window = s.defaultWindow
	}

	now := clock.Now()
	item := &Item{
		ID:         idgen.New(),
		ActionID:   actionID,
		ActionType: actionType,
		Risk:       c.Level,
		OpenedAt:   now,
		Deadline:   now.Add(window),
		Status:     StatusPending,
		Rationale:  c.Rationale,
	}
	if err := s.items.Save(ctx, item); err != nil {
		return nil, err
	}
	_ = s.events.Publish(ctx, &Event{Topic: TopicConsensusOpened, Data: item})
	s.record(ctx, item, "opened", "", c.Rationale)

	if window > 0 {
		id := item.ID
		timer := time.AfterFunc(window, func() {
			if _, err := s.CheckAndResolve(context.Background(), id); err != nil {
				log.Printf("consensus: expiry of item %s failed: %v", id, err)
			}
		})
		s.timerMu.Lock()
		s.timers[id] = timer
		s.timerMu.Unlock()
	}
	return item, nil
}

// Veto registers a veto on a pending item and escalates it for full review.
// A veto losing the race against expiry returns the resolved item together
// with ErrAlreadyResolved; callers treat that as a no-op.
func (s *Service) Veto(ctx context.Context, itemID, actorID, reason string) (*Item, error) {
	if itemID == "" {
		return nil, dao.ErrInvalidID
	}

	s.perItem.Lock(itemID)
	defer s.perItem.Unlock(itemID)

	item, err := s.items.Load(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	if item.Resolved() {
		return item, ErrAlreadyResolved
	}

	now := clock.Now()
	item.Status = StatusVetoed
	item.ResolvedAt = &now
	item.Vetoes = append(item.Vetoes, &VetoRecord{ActorID: actorID, Reason: reason, CreatedAt: now})
	if err := s.items.Save(ctx, item); err != nil {
		return nil, err
	}
	s.stopTimer(itemID)
	_ = s.events.Publish(ctx, &Event{Topic: TopicConsensusVetoed, Data: item})
	s.record(ctx, item, "vetoed", actorID, reason)

	if s.escalate != nil {
		if err := s.escalate(ctx, item); err != nil {
			log.Printf("consensus: escalation of item %s failed: %v", itemID, err)
		} else {
			item.Status = StatusEscalated
			if err := s.items.Save(ctx, item); err != nil {
				return nil, err
			}
			_ = s.events.Publish(ctx, &Event{Topic: TopicConsensusEscalated, Data: item})
			s.record(ctx, item, "escalated", actorID, "handed to reviewer routing")
		}
	}
	return item, nil
}

// CheckAndResolve approves a pending item whose deadline has passed.  It is
// idempotent and safe to invoke proactively or from the expiry timer; the
// result reports whether this call performed the transition.
func (s *Service) CheckAndResolve(ctx context.Context, itemID string) (*CheckResult, error) {
	if itemID == "" {
		return nil, dao.ErrInvalidID
	}

	s.perItem.Lock(itemID)
	defer s.perItem.Unlock(itemID)

	item, err := s.items.Load(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	if item.Resolved() {
		return &CheckResult{Status: item.Status}, nil
	}

	now := clock.Now()
	if now.Before(item.Deadline) {
		return &CheckResult{Status: StatusPending}, nil
	}

	item.Status = StatusApproved
	item.ResolvedAt = &now
	if err := s.items.Save(ctx, item); err != nil {
		return nil, err
	}
	s.stopTimer(itemID)
	_ = s.events.Publish(ctx, &Event{Topic: TopicConsensusApproved, Data: item})
	s.record(ctx, item, "approved", "", "window expired without veto")
	return &CheckResult{Status: StatusApproved, ResolvedNow: true}, nil
}

// Get returns the item by id, or ErrNotFound.
func (s *Service) Get(ctx context.Context, itemID string) (*Item, error) {
	item, err := s.items.Load(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	return item, nil
}

// List returns items matching the supplied parameters (e.g. State).
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*Item, error) {
	all, err := s.items.List(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]*Item, 0, len(all))
	for _, item := range all {
		if criteria.FilterByState(string(item.Status), parameters) {
			matched = append(matched, item)
		}
	}
	return matched, nil
}

// Sweep resolves every pending item whose deadline has passed.  It returns
// the number of items approved by this pass.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	pending, err := s.List(ctx, dao.NewParameter("State", string(StatusPending)))
	if err != nil {
		return 0, err
	}
	resolved := 0
	for _, item := range pending {
		result, err := s.CheckAndResolve(ctx, item.ID)
		if err != nil {
			return resolved, err
		}
		if result.ResolvedNow {
			resolved++
		}
	}
	return resolved, nil
}

// Queue exposes the lifecycle event queue.
func (s *Service) Queue() messaging.Queue[Event] { return s.events }

func (s *Service) stopTimer(itemID string) {
	s.timerMu.Lock()
	if timer, ok := s.timers[itemID]; ok {
		timer.Stop()
		delete(s.timers, itemID)
	}
	s.timerMu.Unlock()
}

func (s *Service) record(ctx context.Context, item *Item, transition, actor, reason string) {
	if s.recorder == nil {
		return
	}
	_ = s.recorder.Record(ctx, &audit.Entry{
		EntityID:   item.ID,
		EntityKind: "consensus",
		Transition: transition,
		Actor:      actor,
		Reason:     reason,
	})
}
