package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

	"github.com/viant/guardrail/service/audit"
)

func TestArchive(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()

	archive, err := New(fs, "mem://localhost/guardrail/audit")
	require.NoError(t, err)

	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entry := &audit.Entry{
		ID:         "entry-1",
		EntityID:   "lock-1",
		EntityKind: "lock",
		Transition: "locked",
		Actor:      "agent-1",
		CreatedAt:  createdAt,
	}
	require.NoError(t, archive.Put(ctx, entry))

	// the same entry never archives twice
	assert.Error(t, archive.Put(ctx, entry))

	other := &audit.Entry{ID: "entry-2", EntityID: "lock-1", EntityKind: "lock", Transition: "unlocked", CreatedAt: createdAt}
	require.NoError(t, archive.Put(ctx, other))

	entries, err := archive.List(ctx, "2025-06-01")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byID := map[string]*audit.Entry{}
	for _, archived := range entries {
		byID[archived.ID] = archived
	}
	assert.Equal(t, "locked", byID["entry-1"].Transition)
	assert.Equal(t, "agent-1", byID["entry-1"].Actor)
	assert.Equal(t, "unlocked", byID["entry-2"].Transition)

	// days with no entries yield an empty result
	entries, err = archive.List(ctx, "2025-06-02")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestArchiveValidation(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()

	_, err := New(fs, "")
	assert.Error(t, err)

	archive, err := New(fs, "mem://localhost/guardrail/audit")
	require.NoError(t, err)
	assert.Error(t, archive.Put(ctx, nil))
	assert.Error(t, archive.Put(ctx, &audit.Entry{}))
}

func TestTrailWithArchiver(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()

	archive, err := New(fs, "mem://localhost/guardrail/trail")
	require.NoError(t, err)
	trail := audit.New(audit.WithArchiver(archive))

	entry := &audit.Entry{EntityID: "item-1", EntityKind: "consensus", Transition: "opened"}
	require.NoError(t, trail.Record(ctx, entry))

	day := entry.CreatedAt.UTC().Format("2006-01-02")
	entries, err := archive.List(ctx, day)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
}
