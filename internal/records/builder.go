// Package records flattens extracted or tabular data into the persistable
// content units and their index-aligned embedding units.
package records

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"HealthIngest/internal/domain"
)

const (
	fieldDelimiter = " | "
	missingText    = "NA"

	// DefaultSampleLimit bounds how many dataset rows become documents and embeddings.
	DefaultSampleLimit = 50
)

// Batch is everything one pipeline run hands to the stores. Units and
// Embeddings always have the same length and order.
type Batch struct {
	Source     string
	Table      domain.Table
	Documents  []map[string]any
	Units      []domain.ContentUnit
	Embeddings []domain.EmbeddingUnit
}

// Empty reports whether there is nothing to store.
func (b Batch) Empty() bool {
	return b.Table.Len() == 0 && len(b.Documents) == 0 && len(b.Embeddings) == 0
}

// Build turns an extraction into content units, their embeddings, the same
// units as documents, and a relational view of them. Sections whose text is
// blank after trimming produce nothing.
func Build(ex domain.Extraction) Batch {
	batch := Batch{Source: ex.Source}

	for _, s := range ex.Sections {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		unit := domain.ContentUnit{
			Source:     ex.Source,
			CapturedAt: ex.CapturedAt,
			Category:   s.Topic,
			Section:    s.Section,
			Text:       text,
			URL:        s.OriginURL,
		}
		batch.Units = append(batch.Units, unit)
		batch.Embeddings = append(batch.Embeddings, EmbeddingFor(unit))
	}

	batch.Documents = UnitDocuments(batch.Units)
	batch.Table = ContentTable(batch.Units)
	return batch
}

// EmbeddingFor renders the embedding text of a unit; the layout is fixed so it
// can be compared byte for byte.
func EmbeddingFor(u domain.ContentUnit) domain.EmbeddingUnit {
	doc := strings.Join([]string{
		"category: " + u.Category,
		"section: " + u.Section,
		"text: " + u.Text,
		"url: " + u.URL,
	}, fieldDelimiter)

	return domain.EmbeddingUnit{
		Document: doc,
		Metadata: map[string]string{
			"category": u.Category,
			"section":  u.Section,
			"source":   u.Source,
			"url":      u.URL,
		},
	}
}

// UnitDocuments converts units into document-store records.
func UnitDocuments(units []domain.ContentUnit) []map[string]any {
	docs := make([]map[string]any, 0, len(units))
	for _, u := range units {
		docs = append(docs, map[string]any{
			"source":      u.Source,
			"captured_at": u.CapturedAt.UTC().Format(time.RFC3339),
			"category":    u.Category,
			"section":     u.Section,
			"text":        u.Text,
			"url":         u.URL,
		})
	}
	return docs
}

// ContentTable exposes units as rows for the relational store.
func ContentTable(units []domain.ContentUnit) domain.Table {
	table := domain.Table{
		Columns: []string{"source", "captured_at", "category", "section", "text", "url"},
		Rows:    make([]domain.Row, 0, len(units)),
	}
	for _, u := range units {
		table.Rows = append(table.Rows, domain.Row{
			domain.Text(u.Source),
			domain.Text(u.CapturedAt.UTC().Format(time.RFC3339)),
			domain.Text(u.Category),
			domain.Text(u.Section),
			domain.Text(u.Text),
			domain.Text(u.URL),
		})
	}
	return table
}

// FromTable samples the first limit rows of a normalized dataset into
// documents and embeddings; the full table is kept for the relational store.
func FromTable(table domain.Table, source string, limit int) Batch {
	if limit <= 0 {
		limit = DefaultSampleLimit
	}
	n := min(limit, table.Len())

	batch := Batch{
		Source:     source,
		Table:      table,
		Documents:  make([]map[string]any, 0, n),
		Embeddings: make([]domain.EmbeddingUnit, 0, n),
	}

	for i := 0; i < n; i++ {
		row := table.Rows[i]
		doc := make(map[string]any, len(table.Columns))
		parts := make([]string, 0, len(table.Columns))
		for c, column := range table.Columns {
			value := missingText
			if c < len(row) && !row[c].IsMissing() {
				value = row[c].String()
			}
			if c < len(row) && row[c].Kind == domain.ValueCode {
				doc[column] = row[c].Code
			} else {
				doc[column] = value
			}
			parts = append(parts, fmt.Sprintf("%s: %s", column, value))
		}
		batch.Documents = append(batch.Documents, doc)
		batch.Embeddings = append(batch.Embeddings, domain.EmbeddingUnit{
			Document: strings.Join(parts, fieldDelimiter),
			Metadata: map[string]string{
				"row_index": strconv.Itoa(i),
				"source":    source,
			},
		})
	}
	return batch
}
