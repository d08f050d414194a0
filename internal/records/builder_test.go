package records

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HealthIngest/internal/domain"
)

var capturedAt = time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)

func extraction(sections ...domain.RawSection) domain.Extraction {
	return domain.Extraction{Source: "https://example.org/diabetes/", CapturedAt: capturedAt, Sections: sections}
}

func TestBuildEmbeddingLayout(t *testing.T) {
	t.Parallel()

	batch := Build(extraction(domain.RawSection{
		Kind:      domain.KindTableRow,
		Topic:     "Type 1",
		Section:   "description",
		Text:      "  The immune system attacks insulin cells. ",
		OriginURL: "https://example.org/diabetes/",
	}))

	require.Len(t, batch.Units, 1)
	require.Len(t, batch.Embeddings, 1)
	assert.Equal(t, "The immune system attacks insulin cells.", batch.Units[0].Text)
	assert.Equal(t,
		"category: Type 1 | section: description | text: The immune system attacks insulin cells. | url: https://example.org/diabetes/",
		batch.Embeddings[0].Document)
	assert.Equal(t, map[string]string{
		"category": "Type 1",
		"section":  "description",
		"source":   "https://example.org/diabetes/",
		"url":      "https://example.org/diabetes/",
	}, batch.Embeddings[0].Metadata)

	require.Len(t, batch.Documents, 1)
	assert.Equal(t, "2026-03-03T10:00:00Z", batch.Documents[0]["captured_at"])
	assert.Equal(t, 1, batch.Table.Len())
	assert.Equal(t, "The immune system attacks insulin cells.", batch.Table.Rows[0][4].Text)
}

func TestBuildDropsBlankSections(t *testing.T) {
	t.Parallel()

	batch := Build(extraction(
		domain.RawSection{Kind: domain.KindIntro, Topic: "general", Section: "intro", Text: ""},
		domain.RawSection{Kind: domain.KindBulletItem, Topic: "general", Section: "symptom", Text: " \t\n "},
		domain.RawSection{Kind: domain.KindBulletItem, Topic: "general", Section: "symptom", Text: "Thirst"},
	))

	require.Len(t, batch.Units, 1)
	require.Len(t, batch.Embeddings, 1)
	assert.Equal(t, "Thirst", batch.Units[0].Text)
	assert.False(t, batch.Empty())

	assert.True(t, Build(extraction()).Empty())
}

func TestBuildKeepsListsAligned(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	texts := []string{"", " ", "Thirst", "  Blurred vision ", "\n", "Feeling tired", "a | b"}

	for round := 0; round < 50; round++ {
		var sections []domain.RawSection
		for i := 0; i < rng.Intn(20); i++ {
			sections = append(sections, domain.RawSection{
				Kind:    domain.KindBulletItem,
				Topic:   "general",
				Section: "symptom",
				Text:    texts[rng.Intn(len(texts))],
			})
		}

		batch := Build(extraction(sections...))
		require.Equal(t, len(batch.Units), len(batch.Embeddings))
		require.Equal(t, len(batch.Units), len(batch.Documents))
		for i, unit := range batch.Units {
			assert.NotEmpty(t, strings.TrimSpace(unit.Text))
			assert.Contains(t, batch.Embeddings[i].Document, unit.Text)
		}
	}
}

func TestFromTable(t *testing.T) {
	t.Parallel()

	table := domain.Table{
		Columns: []string{"gender", "diag_1"},
		Rows: []domain.Row{
			{domain.Code(1), domain.Text("250.83")},
			{domain.Code(-1), domain.Missing()},
			{domain.Code(0), domain.Text("401")},
		},
	}

	batch := FromTable(table, "diabetic_data", 2)
	assert.Equal(t, 3, batch.Table.Len())
	require.Len(t, batch.Documents, 2)
	require.Len(t, batch.Embeddings, 2)

	assert.Equal(t, map[string]any{"gender": 1, "diag_1": "250.83"}, batch.Documents[0])
	assert.Equal(t, map[string]any{"gender": -1, "diag_1": "NA"}, batch.Documents[1])
	assert.Equal(t, "gender: -1 | diag_1: NA", batch.Embeddings[1].Document)
	assert.Equal(t, map[string]string{"row_index": "1", "source": "diabetic_data"}, batch.Embeddings[1].Metadata)

	all := FromTable(table, "diabetic_data", 0)
	assert.Len(t, all.Embeddings, 3)
}
