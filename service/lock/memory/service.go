package memory

import (
	"context"
	"sync"

	"github.com/viant/guardrail/internal/clock"
	"github.com/viant/guardrail/internal/idgen"
	"github.com/viant/guardrail/internal/keyed"
	"github.com/viant/guardrail/service/audit"
	"github.com/viant/guardrail/service/classifier"
	"github.com/viant/guardrail/service/dao"
	"github.com/viant/guardrail/service/dao/criteria"
	"github.com/viant/guardrail/service/dao/store"
	lock "github.com/viant/guardrail/service/lock"
	"github.com/viant/guardrail/service/messaging"
	qmem "github.com/viant/guardrail/service/messaging/memory"
)

type service struct {
	locks dao.Service[string, lock.LockedAction]

	// single-writer per lock id - two concurrent approvals can never both
	// observe "requirement not yet met" and double-count
	perLock *keyed.Mutex[string]

	// open lock per action id
	activeMu sync.Mutex
	active   map[string]string // action id -> lock id

	requirements *lock.RequirementPolicy
	roles        func(reviewerID string) []string
	events       messaging.Queue[lock.Event]
	recorder     audit.Recorder
}

func lockKey(l *lock.LockedAction) string { return l.ID }

// New creates an in-memory lock manager.
func New(options ...Option) lock.Service {
	ret := &service{
		locks:        store.NewMemoryStore[string, lock.LockedAction](lockKey),
		perLock:      keyed.New[string](),
		active:       make(map[string]string),
		requirements: lock.DefaultRequirementPolicy(),
		events:       qmem.NewQueue[lock.Event](qmem.DefaultConfig()),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (s *service) Create(ctx context.Context, actionID, actionType string, c classifier.Classification) (*lock.LockedAction, error) {
	if actionID == "" {
		return nil, dao.ErrInvalidID
	}

	s.activeMu.Lock()
	if _, open := s.active[actionID]; open {
		s.activeMu.Unlock()
		return nil, lock.ErrAlreadyLocked
	}
	id := idgen.New()
	s.active[actionID] = id
	s.activeMu.Unlock()

	locked := &lock.LockedAction{
		ID:          id,
		ActionID:    actionID,
		ActionType:  actionType,
		Risk:        c.Level,
		Requirement: s.requirements.RequirementFor(c.Level),
		Status:      lock.StatusLocked,
		Rationale:   c.Rationale,
		CreatedAt:   clock.Now(),
	}
	if err := s.locks.Save(ctx, locked); err != nil {
		s.release(actionID)
		return nil, err
	}
	s.publish(ctx, lock.TopicLockCreated, locked)
	s.record(ctx, locked, "locked", "", c.Rationale)
	return locked, nil
}

func (s *service) RecordDecision(ctx context.Context, lockID, reviewerID string, decision lock.Decision, reason string) (*lock.LockedAction, error) {
	if lockID == "" || reviewerID == "" {
		return nil, dao.ErrInvalidID
	}

	s.perLock.Lock(lockID)
	defer s.perLock.Unlock(lockID)

	locked, err := s.locks.Load(ctx, lockID)
	if err != nil {
		return nil, err
	}
	if locked == nil {
		return nil, lock.ErrNotFound
	}
	if locked.Resolved() {
		return locked, lock.ErrResolved
	}
	for _, record := range locked.Approvals {
		if record.ReviewerID == reviewerID {
			return locked, lock.ErrDuplicateApproval
		}
	}
	if !s.eligible(reviewerID, locked.Requirement.Roles) {
		return locked, lock.ErrIneligibleReviewer
	}

	locked.Approvals = append(locked.Approvals, &lock.ApprovalRecord{
		ReviewerID: reviewerID,
		Decision:   decision,
		Reason:     reason,
		CreatedAt:  clock.Now(),
	})

	// a single reject wins regardless of approval count or arrival order
	if decision == lock.DecisionReject {
		s.resolve(locked, lock.StatusRejected)
		if err := s.locks.Save(ctx, locked); err != nil {
			return nil, err
		}
		s.release(locked.ActionID)
		s.publish(ctx, lock.TopicLockRejected, locked)
		s.record(ctx, locked, "rejected", reviewerID, reason)
		return locked, nil
	}

	if err := s.locks.Save(ctx, locked); err != nil {
		return nil, err
	}
	s.publish(ctx, lock.TopicLockApproved, locked)
	s.record(ctx, locked, "approved", reviewerID, reason)

	if locked.ApprovalCount() >= locked.Requirement.Count {
		s.resolve(locked, lock.StatusUnlocked)
		if err := s.locks.Save(ctx, locked); err != nil {
			return nil, err
		}
		s.release(locked.ActionID)
		s.publish(ctx, lock.TopicLockUnlocked, locked)
		s.record(ctx, locked, "unlocked", reviewerID, "")
	}
	return locked, nil
}

func (s *service) AttemptUnlock(ctx context.Context, lockID string) (*lock.UnlockResult, error) {
	if lockID == "" {
		return nil, dao.ErrInvalidID
	}

	s.perLock.Lock(lockID)
	defer s.perLock.Unlock(lockID)

	locked, err := s.locks.Load(ctx, lockID)
	if err != nil {
		return nil, err
	}
	if locked == nil {
		return nil, lock.ErrNotFound
	}

	result := &lock.UnlockResult{
		Approvals: locked.ApprovalCount(),
		Required:  locked.Requirement.Count,
	}
	switch locked.Status {
	case lock.StatusUnlocked:
		result.Outcome = lock.OutcomeAlreadyUnlocked
		return result, nil
	case lock.StatusRejected:
		result.Outcome = lock.OutcomeRejected
		return result, nil
	}

	if result.Approvals < result.Required {
		result.Outcome = lock.OutcomeInsufficient
		return result, nil
	}

	s.resolve(locked, lock.StatusUnlocked)
	if err := s.locks.Save(ctx, locked); err != nil {
		return nil, err
	}
	s.release(locked.ActionID)
	s.publish(ctx, lock.TopicLockUnlocked, locked)
	s.record(ctx, locked, "unlocked", "", "")
	result.Outcome = lock.OutcomeUnlocked
	return result, nil
}

func (s *service) Cancel(ctx context.Context, lockID, reason string) (*lock.LockedAction, error) {
	if lockID == "" {
		return nil, dao.ErrInvalidID
	}

	s.perLock.Lock(lockID)
	defer s.perLock.Unlock(lockID)

	locked, err := s.locks.Load(ctx, lockID)
	if err != nil {
		return nil, err
	}
	if locked == nil {
		return nil, lock.ErrNotFound
	}
	if locked.Resolved() {
		return locked, lock.ErrResolved
	}

	s.resolve(locked, lock.StatusRejected)
	if err := s.locks.Save(ctx, locked); err != nil {
		return nil, err
	}
	s.release(locked.ActionID)
	s.publish(ctx, lock.TopicLockRejected, locked)
	s.record(ctx, locked, "cancelled", "", reason)
	return locked, nil
}

// eligible is permissive when no resolver is configured or the requirement
// names no roles.
func (s *service) eligible(reviewerID string, required []string) bool {
	if s.roles == nil || len(required) == 0 {
		return true
	}
	held := s.roles(reviewerID)
	for _, want := range required {
		for _, role := range held {
			if role == want {
				return true
			}
		}
	}
	return false
}

func (s *service) Get(ctx context.Context, lockID string) (*lock.LockedAction, error) {
	locked, err := s.locks.Load(ctx, lockID)
	if err != nil {
		return nil, err
	}
	if locked == nil {
		return nil, lock.ErrNotFound
	}
	return locked, nil
}

func (s *service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*lock.LockedAction, error) {
	all, err := s.locks.List(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]*lock.LockedAction, 0, len(all))
	for _, locked := range all {
		if criteria.FilterByState(string(locked.Status), parameters) {
			matched = append(matched, locked)
		}
	}
	return matched, nil
}

func (s *service) Queue() messaging.Queue[lock.Event] { return s.events }

func (s *service) resolve(locked *lock.LockedAction, status lock.Status) {
	now := clock.Now()
	locked.Status = status
	locked.ResolvedAt = &now
}

func (s *service) release(actionID string) {
	s.activeMu.Lock()
	delete(s.active, actionID)
	s.activeMu.Unlock()
}

func (s *service) publish(ctx context.Context, topic string, locked *lock.LockedAction) {
	_ = s.events.Publish(ctx, &lock.Event{Topic: topic, Data: locked})
}

func (s *service) record(ctx context.Context, locked *lock.LockedAction, transition, actor, reason string) {
	if s.recorder == nil {
		return
	}
	_ = s.recorder.Record(ctx, &audit.Entry{
		EntityID:   locked.ID,
		EntityKind: "lock",
		Transition: transition,
		Actor:      actor,
		Reason:     reason,
	})
}

var _ lock.Service = (*service)(nil)
