// Package vectorstore embeds documents and upserts them into Chroma through
// its v2 HTTP API.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"

	"HealthIngest/internal/config"
	"HealthIngest/internal/domain"
	"HealthIngest/internal/ports"
)

const (
	defaultTenant    = "default_tenant"
	defaultDatabase  = "default_database"
	defaultTimeout   = 30 * time.Second
	defaultBatchSize = 100

	// IDModeRandom assigns a fresh UUID to every upserted document.
	IDModeRandom = "random"
	// IDModeContent derives the id from the document text so re-runs overwrite.
	IDModeContent = "content-hash"
)

var contentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("healthingest/vector-document"))

// ChromaStore implements ports.VectorStore.
type ChromaStore struct {
	client    *resty.Client
	embedder  embeddings.Embedder
	tenant    string
	database  string
	batchSize int
	idMode    string
	logger    *slog.Logger

	mu          sync.Mutex
	collections map[string]string
}

var _ ports.VectorStore = (*ChromaStore)(nil)

type chromaError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type collectionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewChromaStore builds a store talking to cfg.URL and embedding with embedder.
func NewChromaStore(cfg config.ChromaConfig, embedder embeddings.Embedder, log *slog.Logger) *ChromaStore {
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetError(&chromaError{})

	store := &ChromaStore{
		client:      client,
		embedder:    embedder,
		tenant:      valueOr(cfg.Tenant, defaultTenant),
		database:    valueOr(cfg.Database, defaultDatabase),
		batchSize:   cfg.BatchSize,
		idMode:      valueOr(cfg.IDMode, IDModeRandom),
		logger:      log.With("component", "chroma"),
		collections: make(map[string]string),
	}
	if store.batchSize <= 0 {
		store.batchSize = defaultBatchSize
	}
	return store
}

// Ping calls the heartbeat endpoint.
func (s *ChromaStore) Ping(ctx context.Context) error {
	resp, err := s.client.R().SetContext(ctx).Get("/api/v2/heartbeat")
	return domain.NewStoreError(domain.StoreVector, responseError("heartbeat", resp, err))
}

// Upsert assigns ids to documents and upserts them with their metadata.
func (s *ChromaStore) Upsert(ctx context.Context, collection string, documents []string, metadatas []map[string]string) (int, error) {
	entries, err := s.Prepare(documents, metadatas)
	if err != nil {
		return 0, err
	}
	return s.UpsertEntries(ctx, collection, entries)
}

// Prepare checks the lists are index-aligned and assigns an id to every
// document. In content-hash mode repeated documents collapse into one entry.
func (s *ChromaStore) Prepare(documents []string, metadatas []map[string]string) ([]domain.VectorEntry, error) {
	if len(documents) != len(metadatas) {
		return nil, fmt.Errorf("%w: %d documents but %d metadatas", domain.ErrContractViolation, len(documents), len(metadatas))
	}

	entries := make([]domain.VectorEntry, 0, len(documents))
	seen := make(map[string]struct{}, len(documents))
	for i, doc := range documents {
		var id string
		if s.idMode == IDModeContent {
			id = uuid.NewSHA1(contentNamespace, []byte(doc)).String()
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		} else {
			id = uuid.NewString()
		}
		entries = append(entries, domain.VectorEntry{ID: id, Document: doc, Metadata: metadatas[i]})
	}
	return entries, nil
}

// UpsertEntries embeds entries batch by batch and upserts them under their ids.
// Upserting the same entries again overwrites what an earlier call wrote.
func (s *ChromaStore) UpsertEntries(ctx context.Context, collection string, entries []domain.VectorEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	if collection == "" {
		return 0, fmt.Errorf("%w: vector collection is empty", domain.ErrContractViolation)
	}
	if s.embedder == nil {
		return 0, domain.NewStoreError(domain.StoreVector, errors.New("embedder is not configured"))
	}

	collectionID, err := s.collectionID(ctx, collection)
	if err != nil {
		return 0, domain.NewStoreError(domain.StoreVector, err)
	}

	path := fmt.Sprintf("%s/%s/upsert", s.collectionsPath(), collectionID)
	written := 0
	for start := 0; start < len(entries); start += s.batchSize {
		batch := entries[start:min(start+s.batchSize, len(entries))]

		ids := make([]string, len(batch))
		documents := make([]string, len(batch))
		metadatas := make([]map[string]string, len(batch))
		for i, e := range batch {
			ids[i], documents[i], metadatas[i] = e.ID, e.Document, e.Metadata
		}

		vectors, err := s.embedder.EmbedDocuments(ctx, documents)
		if err != nil {
			return written, domain.NewStoreError(domain.StoreVector, err)
		}
		if len(vectors) != len(batch) {
			return written, domain.NewStoreError(domain.StoreVector,
				fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(batch)))
		}

		body := map[string]any{
			"ids":        ids,
			"embeddings": vectors,
			"documents":  documents,
			"metadatas":  metadatas,
		}
		resp, err := s.client.R().SetContext(ctx).SetBody(body).Post(path)
		if err := responseError("upsert", resp, err); err != nil {
			return written, domain.NewStoreError(domain.StoreVector, err)
		}
		written += len(batch)
		s.logger.Debug("batch upserted", "collection", collection, "count", len(batch))
	}
	return written, nil
}

func (s *ChromaStore) collectionsPath() string {
	return fmt.Sprintf("/api/v2/tenants/%s/databases/%s/collections", s.tenant, s.database)
}

func (s *ChromaStore) collectionID(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.collections[name]; ok {
		return id, nil
	}

	var out collectionResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"name": name, "get_or_create": true}).
		SetResult(&out).
		Post(s.collectionsPath())
	if err := responseError("get or create collection "+name, resp, err); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("get or create collection %s: empty id in response", name)
	}
	s.collections[name] = out.ID
	return out.ID, nil
}

func responseError(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("chroma %s: %w", op, err)
	}
	if !resp.IsError() {
		return nil
	}
	msg := strings.TrimSpace(resp.String())
	if apiErr, ok := resp.Error().(*chromaError); ok && apiErr.Message != "" {
		msg = apiErr.Message
	}
	return fmt.Errorf("chroma %s: status %d: %s", op, resp.StatusCode(), msg)
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
