package dao

import (
	"context"
)

// Service defines the storage contract every manager owns its entities
// through.  K is the entity key (usually the ID field), T the entity type.
// Implementations must keep Save/Load/Delete atomic per key; List may return
// an unsynchronised snapshot suitable for display and audit only.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
