package redisdb

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "haptix/internal/domain/workflow/model"
	"haptix/internal/domain/workflow/port"
	"haptix/internal/domain/workflow/trigger"
)

func newTestStore(t *testing.T, ttl time.Duration) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionStore(SessionStoreConfig{Client: client, TTL: ttl}), mr
}

func TestSessionStore_SaveGetDelete(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	sess := &port.Session{
		ID:     "s1",
		Status: port.SessionStatusActive,
		Config: trigger.Config{KeywordTriggers: []trigger.Rule{{Keyword: "stressed", Action: trigger.Action{Mode: types.ActionTypeZap}}}},
	}
	require.NoError(t, store.Save(ctx, sess))
	assert.True(t, mr.Exists("haptix:session:s1"))
	assert.Equal(t, time.Hour, mr.TTL("haptix:session:s1"))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "stressed", got.Config.KeywordTriggers[0].Keyword)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, port.ErrSessionNotFound)
}

func TestSessionStore_Expiry(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base }
	require.NoError(t, store.Save(ctx, &port.Session{ID: "old"}))

	mr.FastForward(2 * time.Minute)
	store.now = func() time.Time { return base.Add(2 * time.Minute) }

	_, err := store.Get(ctx, "old")
	assert.ErrorIs(t, err, port.ErrSessionNotFound)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
