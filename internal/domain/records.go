package domain

import "time"

// SectionKind tells where a raw section came from inside a page.
type SectionKind string

const (
	KindIntro      SectionKind = "intro"
	KindTableRow   SectionKind = "table-row"
	KindBulletItem SectionKind = "bullet-item"
	KindLinkedPage SectionKind = "linked-page"
)

// RawSection is one extracted fragment before it becomes a persistable unit.
type RawSection struct {
	Kind      SectionKind
	Topic     string
	Section   string
	Text      string
	OriginURL string
}

// Extraction groups everything pulled from one primary document and its sub-pages.
type Extraction struct {
	Source     string
	CapturedAt time.Time
	Sections   []RawSection
}

// Empty reports whether nothing usable was extracted.
func (e Extraction) Empty() bool {
	return len(e.Sections) == 0
}

// ContentUnit is the canonical persistable record. Text is never empty.
type ContentUnit struct {
	Source     string    `json:"source"`
	CapturedAt time.Time `json:"captured_at"`
	Category   string    `json:"category"`
	Section    string    `json:"section"`
	Text       string    `json:"text"`
	URL        string    `json:"url"`
}

// EmbeddingUnit is the embeddable twin of a ContentUnit at the same index.
type EmbeddingUnit struct {
	Document string
	Metadata map[string]string
}

// VectorEntry is an EmbeddingUnit with the id it is upserted under. Ids are
// assigned once per run so a retried upsert overwrites instead of duplicating.
type VectorEntry struct {
	ID       string
	Document string
	Metadata map[string]string
}
