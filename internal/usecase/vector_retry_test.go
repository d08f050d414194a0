package usecase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HealthIngest/internal/config"
	"HealthIngest/internal/domain"
	"HealthIngest/internal/infrastructure/vectorstore"
	"HealthIngest/internal/logging"
)

type lengthEmbedder struct{}

func (lengthEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text))}
	}
	return out, nil
}

func (lengthEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

// flakyChroma stores upserted entries by id and fails one upsert request.
type flakyChroma struct {
	mu      sync.Mutex
	failOn  int
	upserts int
	entries map[string]string
}

func (f *flakyChroma) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v2/tenants/default_tenant/databases/default_database/collections", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"col-1","name":"condition_embeddings"}`))
	})
	mux.HandleFunc("POST /api/v2/tenants/default_tenant/databases/default_database/collections/col-1/upsert", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.upserts++
		if f.upserts == f.failOn {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var body struct {
			IDs       []string `json:"ids"`
			Documents []string `json:"documents"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for i, id := range body.IDs {
			f.entries[id] = body.Documents[i]
		}
		_, _ = w.Write([]byte(`{}`))
	})
	return mux
}

func TestRunWebRetriedVectorBatchDoesNotDuplicate(t *testing.T) {
	chroma := &flakyChroma{failOn: 2, entries: map[string]string{}}
	srv := httptest.NewServer(chroma.handler())
	t.Cleanup(srv.Close)

	f := newFixture()
	deps := f.deps()
	deps.Vectors = vectorstore.NewChromaStore(config.ChromaConfig{URL: srv.URL, BatchSize: 1}, lengthEmbedder{}, logging.Discard())

	result, err := NewPipeline(deps).RunWeb(context.Background(), "nhs")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusOK, result.Status)
	assert.Equal(t, 2, result.VectorCountWritten)
	assert.Equal(t, 4, chroma.upserts, "first attempt writes one batch, the retry writes both")
	assert.Len(t, chroma.entries, 2)
}
