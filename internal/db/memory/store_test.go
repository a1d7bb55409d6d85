package memorydb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haptix/internal/domain/workflow/port"
)

func TestSessionStore_CopiesOnReadAndWrite(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	sess := &port.Session{ID: "s1", Status: port.SessionStatusActive}
	require.NoError(t, store.Save(ctx, sess))
	sess.Status = port.SessionStatusStopped

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, port.SessionStatusActive, got.Status)

	ids, _ := store.List(ctx)
	assert.Equal(t, []string{"s1"}, ids)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, port.ErrSessionNotFound)
}

func TestTriggerRepository_Filters(t *testing.T) {
	repo := NewTriggerRepository()
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, []*port.TriggerRecord{
		{SessionID: "a", Kind: port.TriggerKindKeyword, Condition: "stressed"},
		{SessionID: "a", Kind: port.TriggerKindKeyword, Condition: "stressed", Matched: true},
		{SessionID: "b", Kind: port.TriggerKindPrompt, Condition: "anxious"},
	}))

	all, err := repo.List(ctx, port.ListTriggersParams{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.NotEmpty(t, all[0].ID)
	assert.Equal(t, "b", all[0].SessionID)

	matched := true
	hits, _ := repo.List(ctx, port.ListTriggersParams{SessionID: "a", Matched: &matched})
	require.Len(t, hits, 1)
	assert.True(t, hits[0].Matched)

	limited, _ := repo.List(ctx, port.ListTriggersParams{Limit: 2})
	assert.Len(t, limited, 2)
}
