package ports

import (
	"context"
	"time"

	"HealthIngest/internal/domain"
)

// ContentSource extracts the configured web sources.
type ContentSource interface {
	Extract(ctx context.Context, source string) (domain.Extraction, error)
}

// Pinger is a store that can answer a trivial round-trip.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RelationalStore bulk-loads tables; it returns the number of rows written.
type RelationalStore interface {
	Pinger
	WriteTable(ctx context.Context, name string, table domain.Table, mode domain.WriteMode) (int, error)
}

// DocumentStore keeps free-form records and the audit log.
type DocumentStore interface {
	Pinger
	InsertMany(ctx context.Context, collection string, docs []map[string]any) (int, error)
	AppendEvent(ctx context.Context, collection string, event map[string]any) (string, error)
}

// VectorStore embeds and upserts index-aligned documents and metadata.
// Prepare assigns the ids; UpsertEntries can be retried with the same entries.
type VectorStore interface {
	Pinger
	Upsert(ctx context.Context, collection string, documents []string, metadatas []map[string]string) (int, error)
	Prepare(documents []string, metadatas []map[string]string) ([]domain.VectorEntry, error)
	UpsertEntries(ctx context.Context, collection string, entries []domain.VectorEntry) (int, error)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
