package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HealthIngest/internal/config"
	"HealthIngest/internal/logging"
)

func embeddingsServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		data := make([]map[string]any, 0, len(req.Input))
		for i, text := range req.Input {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(len(text)), 1},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedDocuments(t *testing.T) {
	srv := embeddingsServer(t)

	e, err := New(config.EmbedderConfig{BaseURL: srv.URL + "/v1", Model: "nomic-embed-text"}, logging.Discard())
	require.NoError(t, err)

	vectors, err := e.EmbedDocuments(context.Background(), []string{"abc", "abcdef"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{3, 1}, vectors[0])
	assert.Equal(t, []float32{6, 1}, vectors[1])
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New(config.EmbedderConfig{Model: "m"}, logging.Discard())
	assert.Error(t, err)
}

type shortEmbedder struct{}

func (shortEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return [][]float32{{1}}, nil
}

func (shortEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1}, nil
}

func TestWrapRejectsMisalignedVectors(t *testing.T) {
	e := Wrap(shortEmbedder{}, "fake", logging.Discard())
	_, err := e.EmbedDocuments(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}
