package docstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HealthIngest/internal/domain"
)

func setupStore(t *testing.T) (*RedisStore, *redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test"), client, mr
}

func TestInsertMany(t *testing.T) {
	store, client, _ := setupStore(t)
	ctx := context.Background()

	docs := []map[string]any{
		{"category": "general", "section": "symptom", "text": "Thirst"},
		{"category": "general", "section": "symptom", "text": "Feeling tired"},
	}
	written, err := store.InsertMany(ctx, "condition_content", docs)
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	stored, err := client.LRange(ctx, "test:docs:condition_content", 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, stored, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(stored[0]), &first))
	assert.Equal(t, "Thirst", first["text"])

	written, err = store.InsertMany(ctx, "condition_content", nil)
	require.NoError(t, err)
	assert.Zero(t, written)
}

func TestInsertManyRejectsUnencodableDocument(t *testing.T) {
	store, _, _ := setupStore(t)

	_, err := store.InsertMany(context.Background(), "c", []map[string]any{{"bad": make(chan int)}})
	assert.ErrorIs(t, err, domain.ErrContractViolation)

	_, err = store.InsertMany(context.Background(), "", []map[string]any{{"a": 1}})
	assert.ErrorIs(t, err, domain.ErrContractViolation)
}

func TestAppendEvent(t *testing.T) {
	store, client, mr := setupStore(t)
	ctx := context.Background()
	mr.SetTime(time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC))

	id, err := store.AppendEvent(ctx, "pipeline_logs", map[string]any{"stage": "web", "status": "ok"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entries, err := client.XRange(ctx, "test:events:pipeline_logs", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, "2026-03-03T10:00:00Z", entries[0].Values["created_at"])
	assert.JSONEq(t, `{"stage":"web","status":"ok"}`, entries[0].Values["event"].(string))
}

func TestStoreUnreachable(t *testing.T) {
	store, _, mr := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))

	mr.Close()

	assert.ErrorIs(t, store.Ping(ctx), domain.ErrStoreConnection)
	_, err := store.InsertMany(ctx, "c", []map[string]any{{"a": 1}})
	assert.ErrorIs(t, err, domain.ErrStoreConnection)
	_, err = store.AppendEvent(ctx, "pipeline_logs", map[string]any{"a": 1})
	assert.ErrorIs(t, err, domain.ErrStoreConnection)
}
