package normalize

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HealthIngest/internal/domain"
)

const testVocabulary = `
sentinel: -1
columns:
  gender:
    Male: 0
    Female: 1
    Unknown/Invalid: 2
  admission_type_id:
    "1": 0
    "2": 1
    "3": 2
  diabetesMed:
    "No": 0
    "Yes": 1
`

func mustVocabulary(t *testing.T) *Vocabulary {
	t.Helper()
	v, err := ParseVocabulary([]byte(testVocabulary))
	require.NoError(t, err)
	return v
}

func rawTable(t *testing.T) domain.Table {
	t.Helper()
	csvData := " encounter_id ,gender,admission_type_id,diabetesMed,weight,diag_1\n" +
		"1, Female ,1,Yes,?,250.83\n" +
		"2,Male,3,No,None, nan \n" +
		"3,Alien,9,?,,  401 \n"
	table, err := ReadCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	return table
}

func TestVocabularyValidation(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"duplicate code": "columns:\n  gender:\n    Male: 0\n    Female: 0\n",
		"sentinel code":  "columns:\n  gender:\n    Male: -1\n",
		"empty column":   "columns:\n  gender: {}\n",
		"empty label":    "columns:\n  gender:\n    \" \": 3\n",
	}
	for name, raw := range cases {
		_, err := ParseVocabulary([]byte(raw))
		assert.Error(t, err, name)
	}

	v := mustVocabulary(t)
	assert.Equal(t, -1, v.Sentinel())
	assert.Equal(t, []string{"admission_type_id", "diabetesMed", "gender"}, v.Columns())
}

func TestVocabularyLookupIsTotal(t *testing.T) {
	t.Parallel()

	v := mustVocabulary(t)
	assert.Equal(t, 1, v.Lookup("gender", "Female"))
	assert.Equal(t, -1, v.Lookup("gender", "female"))
	assert.Equal(t, -1, v.Lookup("gender", ""))
	assert.Equal(t, -1, v.Lookup("no_such_column", "Female"))
}

func TestLoadVocabularyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testVocabulary), 0o600))

	v, err := LoadVocabulary(path)
	require.NoError(t, err)
	assert.True(t, v.Has("diabetesMed"))

	_, err = LoadVocabulary(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	n := New(mustVocabulary(t), Options{DropColumns: []string{"weight", "does_not_exist"}})
	out := n.Normalize(rawTable(t))

	assert.Equal(t, []string{"encounter_id", "gender", "admission_type_id", "diabetesMed", "diag_1"}, out.Columns)
	require.Len(t, out.Rows, 3)

	assert.Equal(t, domain.Row{domain.Text("1"), domain.Code(1), domain.Code(0), domain.Code(1), domain.Text("250.83")}, out.Rows[0])
	assert.Equal(t, domain.Row{domain.Text("2"), domain.Code(0), domain.Code(2), domain.Code(0), domain.Missing()}, out.Rows[1])
	assert.Equal(t, domain.Row{domain.Text("3"), domain.Code(-1), domain.Code(-1), domain.Code(-1), domain.Text("401")}, out.Rows[2])
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	n := New(mustVocabulary(t), Options{DropColumns: []string{"weight"}})
	once := n.Normalize(rawTable(t))
	twice := n.Normalize(once)
	assert.Equal(t, once, twice)
}

func TestNormalizeMapsTextAsLabels(t *testing.T) {
	t.Parallel()

	n := New(mustVocabulary(t), Options{})
	table := domain.Table{
		Columns: []string{"gender"},
		Rows:    []domain.Row{{domain.Text("1")}, {domain.Text("Female")}, {domain.Code(0)}, {domain.Code(7)}},
	}
	out := n.Normalize(table)
	assert.Equal(t, []domain.Row{{domain.Code(-1)}, {domain.Code(1)}, {domain.Code(0)}, {domain.Code(-1)}}, out.Rows)
}

func TestNormalizeUnknownNumericLabelIsSentinel(t *testing.T) {
	t.Parallel()

	v, err := LoadVocabulary(filepath.Join("..", "..", "configs", "vocabulary.yaml"))
	require.NoError(t, err)
	table := domain.Table{
		Columns: []string{"admission_type_id"},
		Rows:    []domain.Row{{domain.Text("0")}, {domain.Text("0")}, {domain.Text("1")}},
	}
	out := New(v, Options{}).Normalize(table)
	assert.Equal(t, []domain.Row{{domain.Code(-1)}, {domain.Code(-1)}, {domain.Code(0)}}, out.Rows)
}

func TestNormalizeLeavesInputUntouched(t *testing.T) {
	t.Parallel()

	in := rawTable(t)
	before := in.Clone()
	New(mustVocabulary(t), Options{DropColumns: []string{"weight"}}).Normalize(in)
	assert.Equal(t, before, in)
}

func TestReadCSV(t *testing.T) {
	t.Parallel()

	empty, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	_, err = ReadCSV(strings.NewReader("a,b\n1,2,3\n"))
	assert.ErrorIs(t, err, domain.ErrParseFailure)
}

func TestShippedVocabulary(t *testing.T) {
	t.Parallel()

	v, err := LoadVocabulary(filepath.Join("..", "..", "configs", "vocabulary.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 9, v.Lookup("age", "[90-100)"))
	assert.Equal(t, 0, v.Lookup("admission_type_id", "1"))
	assert.Equal(t, 3, v.Lookup("insulin", "Down"))
	assert.Equal(t, 1, v.Lookup("change", "Ch"))
	assert.Equal(t, -1, v.Lookup("race", "?"))
}
