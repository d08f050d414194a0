// Package docstore keeps content documents and pipeline audit events in Redis.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"HealthIngest/internal/domain"
	"HealthIngest/internal/ports"
)

const defaultKeyPrefix = "healthingest"

// RedisStore appends documents to one list per collection and audit events
// to one stream per collection.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ ports.DocumentStore = (*RedisStore)(nil)

// NewRedisStore stores under prefix, "healthingest" when empty.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// DocumentsKey is the list holding a collection's documents.
func (s *RedisStore) DocumentsKey(collection string) string {
	return fmt.Sprintf("%s:docs:%s", s.prefix, collection)
}

// EventsKey is the stream holding a collection's audit events.
func (s *RedisStore) EventsKey(collection string) string {
	return fmt.Sprintf("%s:events:%s", s.prefix, collection)
}

// Ping sends PING.
func (s *RedisStore) Ping(ctx context.Context) error {
	if s.client == nil {
		return domain.NewStoreError(domain.StoreDocument, errors.New("redis is not configured"))
	}
	return domain.NewStoreError(domain.StoreDocument, s.client.Ping(ctx).Err())
}

// InsertMany appends every document as JSON in one RPUSH.
func (s *RedisStore) InsertMany(ctx context.Context, collection string, docs []map[string]any) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	if collection == "" {
		return 0, fmt.Errorf("%w: document collection is empty", domain.ErrContractViolation)
	}
	if s.client == nil {
		return 0, domain.NewStoreError(domain.StoreDocument, errors.New("redis is not configured"))
	}

	values := make([]any, 0, len(docs))
	for i, doc := range docs {
		payload, err := json.Marshal(doc)
		if err != nil {
			return 0, fmt.Errorf("%w: document %d: %v", domain.ErrContractViolation, i, err)
		}
		values = append(values, payload)
	}

	if err := s.client.RPush(ctx, s.DocumentsKey(collection), values...).Err(); err != nil {
		return 0, domain.NewStoreError(domain.StoreDocument, fmt.Errorf("rpush %s: %w", collection, err))
	}
	return len(docs), nil
}

// AppendEvent stamps the event with the server clock and returns its stream id.
func (s *RedisStore) AppendEvent(ctx context.Context, collection string, event map[string]any) (string, error) {
	if collection == "" {
		return "", fmt.Errorf("%w: audit collection is empty", domain.ErrContractViolation)
	}
	if s.client == nil {
		return "", domain.NewStoreError(domain.StoreDocument, errors.New("redis is not configured"))
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("%w: audit event: %v", domain.ErrContractViolation, err)
	}

	now, err := s.client.Time(ctx).Result()
	if err != nil {
		return "", domain.NewStoreError(domain.StoreDocument, fmt.Errorf("server time: %w", err))
	}

	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.EventsKey(collection),
		Values: map[string]any{
			"event":      string(payload),
			"created_at": now.UTC().Format(time.RFC3339Nano),
		},
	}).Result()
	if err != nil {
		return "", domain.NewStoreError(domain.StoreDocument, fmt.Errorf("xadd %s: %w", collection, err))
	}
	return id, nil
}
