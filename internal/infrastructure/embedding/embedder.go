// Package embedding turns texts into vectors through an OpenAI-compatible
// embeddings endpoint (OpenAI, Ollama, vLLM, ...).
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"HealthIngest/internal/config"
)

// local OpenAI-compatible servers accept any token, the client refuses an empty one.
const anonymousToken = "none"

// Embedder wraps a langchaingo embedder with logging and error context.
type Embedder struct {
	impl   embeddings.Embedder
	model  string
	logger *slog.Logger
}

var _ embeddings.Embedder = (*Embedder)(nil)

// New builds an embedder from configuration.
func New(cfg config.EmbedderConfig, log *slog.Logger) (*Embedder, error) {
	if cfg.BaseURL == "" || cfg.Model == "" {
		return nil, errors.New("embedder needs baseUrl and model")
	}
	token := cfg.APIKey
	if token == "" {
		token = anonymousToken
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}

	opts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	impl, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	return Wrap(impl, cfg.Model, log), nil
}

// Wrap decorates an existing implementation.
func Wrap(impl embeddings.Embedder, model string, log *slog.Logger) *Embedder {
	if log == nil {
		log = slog.Default()
	}
	return &Embedder{impl: impl, model: model, logger: log.With("component", "embedder", "model", model)}
}

// EmbedDocuments returns one vector per text or an error.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("embedding documents", "count", len(texts))
	vectors, err := e.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d documents with %s: %w", len(texts), e.model, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed with %s: got %d vectors for %d documents", e.model, len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedQuery embeds a single text.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query with %s: %w", e.model, err)
	}
	return vector, nil
}
