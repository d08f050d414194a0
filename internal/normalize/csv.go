package normalize

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"HealthIngest/internal/domain"
)

// ReadCSV loads a header line plus records as a table of text cells.
// An empty input gives an empty table.
func ReadCSV(r io.Reader) (domain.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 0

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return domain.Table{}, nil
	}
	if err != nil {
		return domain.Table{}, fmt.Errorf("%w: csv header: %w", domain.ErrParseFailure, err)
	}

	table := domain.Table{Columns: append([]string(nil), header...)}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Table{}, fmt.Errorf("%w: csv record %d: %w", domain.ErrParseFailure, len(table.Rows)+1, err)
		}
		row := make(domain.Row, len(record))
		for i, field := range record {
			row[i] = domain.Text(field)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string) (domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Table{}, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer f.Close()

	return ReadCSV(f)
}
