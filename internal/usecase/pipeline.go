package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"HealthIngest/internal/domain"
	"HealthIngest/internal/metrics"
	"HealthIngest/internal/normalize"
	"HealthIngest/internal/ports"
	"HealthIngest/internal/records"
)

const (
	StageWeb     = "web"
	StageDataset = "dataset"

	defaultStoreTimeout = 60 * time.Second
	defaultBaseDelay    = 200 * time.Millisecond
)

// Target names where one stage writes in each store.
type Target struct {
	Table              string
	WriteMode          domain.WriteMode
	DocumentCollection string
	VectorCollection   string
}

// RetryPolicy bounds the retries of one adapter call.
type RetryPolicy struct {
	MaxRetries uint64
	BaseDelay  time.Duration
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.ContentSource
	Relational ports.RelationalStore
	Documents  ports.DocumentStore
	Vectors    ports.VectorStore
	Normalizer *normalize.Normalizer
	// Prober runs before every pipeline when Preflight is set.
	Prober    *Prober
	Preflight bool
	Metrics   *metrics.Recorder
	Logger    *slog.Logger

	Retry           RetryPolicy
	StoreTimeout    time.Duration
	Web             Target
	Dataset         Target
	AuditCollection string
	SampleLimit     int
}

// Pipeline implements the extract, build, fan-out and audit workflow.
type Pipeline struct {
	source     ports.ContentSource
	relational ports.RelationalStore
	documents  ports.DocumentStore
	vectors    ports.VectorStore
	normalizer *normalize.Normalizer
	prober     *Prober
	preflight  bool
	metrics    *metrics.Recorder
	logger     *slog.Logger

	retry           RetryPolicy
	storeTimeout    time.Duration
	web             Target
	dataset         Target
	auditCollection string
	sampleLimit     int
	now             func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	p := &Pipeline{
		source:          deps.Source,
		relational:      deps.Relational,
		documents:       deps.Documents,
		vectors:         deps.Vectors,
		normalizer:      deps.Normalizer,
		prober:          deps.Prober,
		preflight:       deps.Preflight,
		metrics:         deps.Metrics,
		logger:          log.With("component", "pipeline"),
		retry:           deps.Retry,
		storeTimeout:    deps.StoreTimeout,
		web:             deps.Web,
		dataset:         deps.Dataset,
		auditCollection: deps.AuditCollection,
		sampleLimit:     deps.SampleLimit,
		now:             time.Now,
	}
	if p.storeTimeout <= 0 {
		p.storeTimeout = defaultStoreTimeout
	}
	if p.retry.BaseDelay <= 0 {
		p.retry.BaseDelay = defaultBaseDelay
	}
	return p
}

// RunWeb extracts one configured source and fans the content out. A failed
// or empty extraction skips the stores entirely.
func (p *Pipeline) RunWeb(ctx context.Context, source string) (domain.FanOutResult, error) {
	started := p.now()
	log := p.logger.With("stage", StageWeb, "source", source)

	if p.source == nil {
		return domain.SkippedResult(), errors.New("content source is not configured")
	}

	extraction, err := p.source.Extract(ctx, source)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return p.skip(StageWeb, started), fmt.Errorf("extract %s: %w", source, ctxErr)
		}
		if errors.Is(err, domain.ErrContractViolation) {
			return p.skip(StageWeb, started), fmt.Errorf("extract %s: %w", source, err)
		}
		log.Warn("extraction failed, skipping stores", "error", err)
		return p.skip(StageWeb, started), nil
	}

	batch := records.Build(extraction)
	if batch.Empty() {
		log.Warn("extraction produced no content, skipping stores")
		return p.skip(StageWeb, started), nil
	}
	log.Info("content extracted", "sections", len(extraction.Sections), "units", len(batch.Units))

	return p.fanOut(ctx, StageWeb, extraction.Source, started, batch, p.web)
}

// RunDataset reads a CSV file, normalizes it and fans it out: the full table
// to the relational store, a sample to the document and vector stores.
func (p *Pipeline) RunDataset(ctx context.Context, path string) (domain.FanOutResult, error) {
	started := p.now()
	if p.normalizer == nil {
		return domain.SkippedResult(), errors.New("normalizer is not configured")
	}

	raw, err := normalize.ReadCSVFile(path)
	if err != nil {
		return p.skip(StageDataset, started), fmt.Errorf("read dataset: %w", err)
	}
	if raw.Len() == 0 {
		p.logger.Warn("dataset is empty, skipping stores", "stage", StageDataset, "path", path)
		return p.skip(StageDataset, started), nil
	}

	table := p.normalizer.Normalize(raw)
	batch := records.FromTable(table, filepath.Base(path), p.sampleLimit)
	p.logger.Info("dataset normalized",
		"stage", StageDataset, "path", path, "rows", table.Len(), "columns", len(table.Columns), "sampled", len(batch.Embeddings))

	return p.fanOut(ctx, StageDataset, batch.Source, started, batch, p.dataset)
}

func (p *Pipeline) skip(stage string, started time.Time) domain.FanOutResult {
	p.metrics.ObserveRun(stage, string(domain.StatusSkip), p.now().Sub(started))
	return domain.SkippedResult()
}

type storeWrite struct {
	store string
	call  func(ctx context.Context) (int, error)
}

// fanOut runs the three adapters concurrently, waits for all of them and
// then appends exactly one audit event.
func (p *Pipeline) fanOut(ctx context.Context, stage, source string, started time.Time, batch records.Batch, target Target) (domain.FanOutResult, error) {
	log := p.logger.With("stage", stage, "source", source)

	var report *domain.HealthReport
	if p.preflight && p.prober != nil {
		r := p.prober.Check(ctx)
		report = &r
		if !r.Healthy() {
			log.Warn("pre-flight check found unreachable stores", "relational", r.Relational, "document", r.Document, "vector", r.Vector)
		}
	}

	table := batch.Table.Clone()
	docs := cloneDocuments(batch.Documents)
	texts, metas := embeddingLists(batch.Embeddings)

	// Ids are fixed before the first attempt so retries overwrite instead of duplicating.
	var entries []domain.VectorEntry
	var prepareErr error
	if p.vectors != nil {
		entries, prepareErr = p.vectors.Prepare(texts, metas)
	}

	writes := []storeWrite{
		{store: domain.StoreRelational, call: func(ctx context.Context) (int, error) {
			if p.relational == nil {
				return 0, errors.New("relational store is not configured")
			}
			return p.relational.WriteTable(ctx, target.Table, table, target.WriteMode)
		}},
		{store: domain.StoreDocument, call: func(ctx context.Context) (int, error) {
			if p.documents == nil {
				return 0, errors.New("document store is not configured")
			}
			return p.documents.InsertMany(ctx, target.DocumentCollection, docs)
		}},
		{store: domain.StoreVector, call: func(ctx context.Context) (int, error) {
			if p.vectors == nil {
				return 0, errors.New("vector store is not configured")
			}
			if prepareErr != nil {
				return 0, prepareErr
			}
			return p.vectors.UpsertEntries(ctx, target.VectorCollection, entries)
		}},
	}

	outcomes := make([]domain.StoreOutcome, len(writes))
	errs := make([]error, len(writes))

	// No WithContext: one failing store must not cancel its siblings.
	var g errgroup.Group
	for i, w := range writes {
		g.Go(func() error {
			written, err := p.write(ctx, w)
			outcomes[i] = domain.StoreOutcome{Written: written, OK: err == nil}
			if err != nil {
				outcomes[i].Written = 0
				outcomes[i].Error = err.Error()
				errs[i] = err
				log.Error("store write failed", "store", w.store, "error", err)
			}
			p.metrics.ObserveStore(w.store, outcomes[i].Written, outcomes[i].OK)
			return nil
		})
	}
	_ = g.Wait()

	result := domain.FanOutResult{
		RelationalRowsWritten: outcomes[0].Written,
		DocumentCountWritten:  outcomes[1].Written,
		VectorCountWritten:    outcomes[2].Written,
		Status:                statusOf(outcomes),
		Outcomes: map[string]domain.StoreOutcome{
			domain.StoreRelational: outcomes[0],
			domain.StoreDocument:   outcomes[1],
			domain.StoreVector:     outcomes[2],
		},
	}

	finished := p.now()
	result.AuditLogID = p.appendAudit(ctx, log, auditEvent(stage, source, started, finished, result, report))
	p.metrics.ObserveRun(stage, string(result.Status), finished.Sub(started))

	log.Info("pipeline finished",
		"status", result.Status,
		"relational", result.RelationalRowsWritten,
		"document", result.DocumentCountWritten,
		"vector", result.VectorCountWritten,
		"audit_id", result.AuditLogID)

	var violations []error
	for _, err := range errs {
		if errors.Is(err, domain.ErrContractViolation) {
			violations = append(violations, err)
		}
	}
	return result, errors.Join(violations...)
}

// write calls one adapter under its own timeout, retrying everything but
// contract violations.
func (p *Pipeline) write(ctx context.Context, w storeWrite) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()

	backoff := retry.WithMaxRetries(p.retry.MaxRetries, retry.NewExponential(p.retry.BaseDelay))

	var written int
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		n, err := w.call(ctx)
		if err == nil {
			written = n
			return nil
		}
		if errors.Is(err, domain.ErrContractViolation) {
			return err
		}
		p.logger.Debug("store write attempt failed", "store", w.store, "attempt", attempt, "error", err)
		return retry.RetryableError(err)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrContractViolation) && !errors.Is(err, domain.ErrStoreConnection) {
			err = domain.NewStoreError(w.store, err)
		}
		return 0, err
	}
	return written, nil
}

func (p *Pipeline) appendAudit(ctx context.Context, log *slog.Logger, event map[string]any) string {
	if p.documents == nil {
		log.Warn("audit log skipped, document store is not configured")
		return ""
	}
	auditCtx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()

	id, err := p.documents.AppendEvent(auditCtx, p.auditCollection, event)
	if err != nil {
		log.Error("audit event not recorded", "error", err)
		return ""
	}
	return id
}

func statusOf(outcomes []domain.StoreOutcome) domain.FanOutStatus {
	ok := 0
	for _, o := range outcomes {
		if o.OK {
			ok++
		}
	}
	switch ok {
	case len(outcomes):
		return domain.StatusOK
	case 0:
		return domain.StatusFailed
	default:
		return domain.StatusPartial
	}
}

func auditEvent(stage, source string, started, finished time.Time, result domain.FanOutResult, report *domain.HealthReport) map[string]any {
	event := map[string]any{
		"stage":       stage,
		"status":      string(result.Status),
		"source":      source,
		"started_at":  started.UTC().Format(time.RFC3339Nano),
		"finished_at": finished.UTC().Format(time.RFC3339Nano),
		"stores":      maps.Clone(result.Outcomes),
	}
	if report != nil {
		event["preflight"] = *report
	}
	return event
}

func cloneDocuments(docs []map[string]any) []map[string]any {
	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		out[i] = maps.Clone(d)
	}
	return out
}

func embeddingLists(units []domain.EmbeddingUnit) ([]string, []map[string]string) {
	texts := make([]string, len(units))
	metas := make([]map[string]string, len(units))
	for i, u := range units {
		texts[i] = u.Document
		metas[i] = maps.Clone(u.Metadata)
	}
	return texts, metas
}
