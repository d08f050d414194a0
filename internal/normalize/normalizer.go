package normalize

import (
	"strings"

	"HealthIngest/internal/domain"
)

// DefaultPlaceholders are the raw tokens that stand for "no value".
var DefaultPlaceholders = []string{"?", "None", "nan"}

// Options tune a Normalizer beyond its vocabulary.
type Options struct {
	Placeholders []string
	DropColumns  []string
}

// Normalizer turns a raw table into its canonical shape.
type Normalizer struct {
	vocab        *Vocabulary
	placeholders map[string]struct{}
	drop         map[string]struct{}
}

// New builds a Normalizer. A nil vocabulary maps no column.
func New(vocab *Vocabulary, opts Options) *Normalizer {
	if vocab == nil {
		vocab, _ = NewVocabulary(DefaultSentinel, nil)
	}
	placeholders := opts.Placeholders
	if placeholders == nil {
		placeholders = DefaultPlaceholders
	}
	n := &Normalizer{
		vocab:        vocab,
		placeholders: make(map[string]struct{}, len(placeholders)),
		drop:         make(map[string]struct{}, len(opts.DropColumns)),
	}
	for _, p := range placeholders {
		n.placeholders[p] = struct{}{}
	}
	for _, c := range opts.DropColumns {
		n.drop[strings.TrimSpace(c)] = struct{}{}
	}
	return n
}

// Normalize returns a new table: trimmed names and text, placeholders as
// missing, categorical columns as codes, dropped columns removed. Text cells
// are always looked up as labels, so a numeric string that is not a label
// becomes the sentinel. Typed codes pass through when valid, which keeps
// Normalize idempotent on its own output.
func (n *Normalizer) Normalize(in domain.Table) domain.Table {
	columns := make([]string, len(in.Columns))
	for i, c := range in.Columns {
		columns[i] = strings.TrimSpace(c)
	}

	out := domain.Table{Rows: make([]domain.Row, len(in.Rows))}
	for r := range in.Rows {
		out.Rows[r] = make(domain.Row, len(columns))
	}

	for c, name := range columns {
		switch {
		case !n.vocab.Has(name):
			for r, row := range in.Rows {
				out.Rows[r][c] = n.cleanCell(cell(row, c))
			}
		default:
			for r, row := range in.Rows {
				out.Rows[r][c] = n.mapCell(name, n.cleanCell(cell(row, c)))
			}
		}
	}

	keep := make([]int, 0, len(columns))
	for i, name := range columns {
		if _, drop := n.drop[name]; !drop {
			keep = append(keep, i)
			out.Columns = append(out.Columns, name)
		}
	}
	if len(keep) == len(columns) {
		return out
	}
	for r, row := range out.Rows {
		trimmed := make(domain.Row, len(keep))
		for i, c := range keep {
			trimmed[i] = row[c]
		}
		out.Rows[r] = trimmed
	}
	return out
}

// Vocabulary exposes the vocabulary the normalizer maps with.
func (n *Normalizer) Vocabulary() *Vocabulary {
	return n.vocab
}

func cell(row domain.Row, i int) domain.Value {
	if i < len(row) {
		return row[i]
	}
	return domain.Missing()
}

func (n *Normalizer) cleanCell(v domain.Value) domain.Value {
	if v.Kind != domain.ValueText {
		return v
	}
	text := strings.TrimSpace(v.Text)
	if text == "" {
		return domain.Missing()
	}
	if _, ok := n.placeholders[text]; ok {
		return domain.Missing()
	}
	return domain.Text(text)
}

func (n *Normalizer) mapCell(column string, v domain.Value) domain.Value {
	switch v.Kind {
	case domain.ValueText:
		return domain.Code(n.vocab.Lookup(column, v.Text))
	case domain.ValueCode:
		if n.vocab.ValidCode(column, v.Code) {
			return v
		}
	}
	return domain.Code(n.vocab.Sentinel())
}
