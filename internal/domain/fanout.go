package domain

import "time"

// Store names used in results, audit events and metrics.
const (
	StoreRelational = "relational"
	StoreDocument   = "document"
	StoreVector     = "vector"
)

// FanOutStatus summarises a pipeline run across the three stores.
type FanOutStatus string

const (
	StatusOK      FanOutStatus = "ok"
	StatusPartial FanOutStatus = "partial"
	StatusSkip    FanOutStatus = "skip"
	StatusFailed  FanOutStatus = "failed"
)

// StoreOutcome is what one adapter reported for a run.
type StoreOutcome struct {
	Written int    `json:"written"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// FanOutResult is created once per run and never mutated after it is returned.
type FanOutResult struct {
	RelationalRowsWritten int
	DocumentCountWritten  int
	VectorCountWritten    int
	AuditLogID            string
	Status                FanOutStatus
	Outcomes              map[string]StoreOutcome
}

// SkippedResult is the result of a run that never reached the stores.
func SkippedResult() FanOutResult {
	return FanOutResult{Status: StatusSkip}
}

// Verdict is the liveness state of one store.
type Verdict string

const (
	VerdictOK   Verdict = "ok"
	VerdictFail Verdict = "fail"
)

// HealthReport is the answer of the connectivity prober.
type HealthReport struct {
	Relational Verdict           `json:"relational"`
	Document   Verdict           `json:"document"`
	Vector     Verdict           `json:"vector"`
	CheckedAt  time.Time         `json:"checked_at"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// Healthy reports whether every store answered.
func (h HealthReport) Healthy() bool {
	return h.Relational == VerdictOK && h.Document == VerdictOK && h.Vector == VerdictOK
}

// WriteMode decides what happens to an existing relational table.
type WriteMode string

const (
	WriteReplace WriteMode = "replace"
	WriteAppend  WriteMode = "append"
)
