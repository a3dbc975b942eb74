package audit

import (
	"context"
	"log"
	"time"

	"github.com/viant/guardrail/internal/clock"
	"github.com/viant/guardrail/internal/idgen"
	"github.com/viant/guardrail/service/dao"
	"github.com/viant/guardrail/service/dao/criteria"
	"github.com/viant/guardrail/service/dao/store"
	"github.com/viant/guardrail/service/messaging"
	qmem "github.com/viant/guardrail/service/messaging/memory"
)

// Entry records a single state transition of a gated entity.
type Entry struct {
	ID         string    `json:"id"`
	EntityID   string    `json:"entityId"`
	EntityKind string    `json:"entityKind"` // lock | review | consensus | retry | signal | action
	Transition string    `json:"transition"` // e.g. "locked", "approved", "vetoed", "denied"
	Actor      string    `json:"actor,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Recorder is the narrow contract managers depend on.  Record must never lose
// an entry for a decision, including denials.
type Recorder interface {
	Record(ctx context.Context, entry *Entry) error
}

// Archiver persists entries outside process memory.  Archival is best-effort
// from the trail's perspective - a failing archiver never blocks a decision.
type Archiver interface {
	Put(ctx context.Context, entry *Entry) error
}

// Service is the in-memory trail.  Every Record appends to the backing store
// and publishes the entry on the fan-out queue for observers.
type Service struct {
	entries  dao.Service[string, Entry]
	events   messaging.Queue[Entry]
	archiver Archiver
}

type Option func(*Service)

// WithArchiver attaches a durable archive (e.g. the afs-backed one under
// audit/archive) that receives a copy of every entry.
func WithArchiver(archiver Archiver) Option {
	return func(s *Service) { s.archiver = archiver }
}

// WithQueue overrides the fan-out queue.
func WithQueue(queue messaging.Queue[Entry]) Option {
	return func(s *Service) { s.events = queue }
}

func entryKey(e *Entry) string { return e.ID }

// New creates an audit trail backed by the in-memory store.
func New(options ...Option) *Service {
	ret := &Service{
		entries: store.NewMemoryStore[string, Entry](entryKey),
		events:  qmem.NewQueue[Entry](qmem.DefaultConfig()),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Record appends an entry.  ID and CreatedAt are assigned when absent so that
// callers only describe the transition.
func (s *Service) Record(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return dao.ErrNilEntity
	}
	if entry.ID == "" {
		entry.ID = idgen.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = clock.Now()
	}
	if err := s.entries.Save(ctx, entry); err != nil {
		return err
	}
	_ = s.events.Publish(ctx, entry)
	if s.archiver != nil {
		if err := s.archiver.Put(ctx, entry); err != nil {
			log.Printf("audit: archive of entry %s failed: %v", entry.ID, err)
		}
	}
	return nil
}

// List returns entries matching the supplied parameters.  Supported filters:
// EntityKind, EntityID, Transition, Actor.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*Entry, error) {
	all, err := s.entries.List(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]*Entry, 0, len(all))
	for _, entry := range all {
		fields := map[string]string{
			"EntityKind": entry.EntityKind,
			"EntityID":   entry.EntityID,
			"Transition": entry.Transition,
			"Actor":      entry.Actor,
		}
		if criteria.Match(fields, parameters) {
			matched = append(matched, entry)
		}
	}
	return matched, nil
}

// Queue exposes the fan-out queue so that observers (UI, dashboards) can
// consume entries as they are recorded.
func (s *Service) Queue() messaging.Queue[Entry] { return s.events }

var _ Recorder = (*Service)(nil)
