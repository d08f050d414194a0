package normalize

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSentinel is the code given to values absent from a vocabulary.
const DefaultSentinel = -1

// Vocabulary maps, per column, raw categorical labels to stable ordinal codes.
type Vocabulary struct {
	sentinel int
	labels   map[string]map[string]int
	codes    map[string]map[int]struct{}
}

type vocabularyFile struct {
	Sentinel *int                      `yaml:"sentinel"`
	Columns  map[string]map[string]int `yaml:"columns"`
}

// LoadVocabulary reads and validates a YAML vocabulary file.
func LoadVocabulary(path string) (*Vocabulary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary %s: %w", path, err)
	}
	v, err := ParseVocabulary(raw)
	if err != nil {
		return nil, fmt.Errorf("vocabulary %s: %w", path, err)
	}
	return v, nil
}

// ParseVocabulary decodes a YAML vocabulary document.
func ParseVocabulary(raw []byte) (*Vocabulary, error) {
	var file vocabularyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}
	sentinel := DefaultSentinel
	if file.Sentinel != nil {
		sentinel = *file.Sentinel
	}
	return NewVocabulary(sentinel, file.Columns)
}

// NewVocabulary validates columns: labels are trimmed and non-empty, codes are
// unique within a column and never equal the sentinel.
func NewVocabulary(sentinel int, columns map[string]map[string]int) (*Vocabulary, error) {
	v := &Vocabulary{
		sentinel: sentinel,
		labels:   make(map[string]map[string]int, len(columns)),
		codes:    make(map[string]map[int]struct{}, len(columns)),
	}

	for rawColumn, mapping := range columns {
		column := strings.TrimSpace(rawColumn)
		if column == "" {
			return nil, fmt.Errorf("vocabulary column name is empty")
		}
		if _, dup := v.labels[column]; dup {
			return nil, fmt.Errorf("column %s declared twice", column)
		}
		if len(mapping) == 0 {
			return nil, fmt.Errorf("column %s has no labels", column)
		}

		labels := make(map[string]int, len(mapping))
		codes := make(map[int]struct{}, len(mapping))
		for rawLabel, code := range mapping {
			label := strings.TrimSpace(rawLabel)
			if label == "" {
				return nil, fmt.Errorf("column %s has an empty label", column)
			}
			if code == sentinel {
				return nil, fmt.Errorf("column %s label %q uses the sentinel code %d", column, label, sentinel)
			}
			if _, dup := labels[label]; dup {
				return nil, fmt.Errorf("column %s label %q declared twice", column, label)
			}
			if _, dup := codes[code]; dup {
				return nil, fmt.Errorf("column %s code %d is not unique", column, code)
			}
			labels[label] = code
			codes[code] = struct{}{}
		}
		v.labels[column] = labels
		v.codes[column] = codes
	}

	return v, nil
}

// Sentinel returns the reserved code for unknown or missing values.
func (v *Vocabulary) Sentinel() int {
	return v.sentinel
}

// Columns lists the mapped columns in sorted order.
func (v *Vocabulary) Columns() []string {
	out := make([]string, 0, len(v.labels))
	for c := range v.labels {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Has reports whether the column is categorical.
func (v *Vocabulary) Has(column string) bool {
	_, ok := v.labels[column]
	return ok
}

// Lookup is total: unknown columns and labels give the sentinel.
func (v *Vocabulary) Lookup(column, label string) int {
	if code, ok := v.labels[column][label]; ok {
		return code
	}
	return v.sentinel
}

// ValidCode reports whether code is a vocabulary code or the sentinel.
func (v *Vocabulary) ValidCode(column string, code int) bool {
	if code == v.sentinel {
		return true
	}
	_, ok := v.codes[column][code]
	return ok
}
