package domain

import "strconv"

// ValueKind discriminates the cells of a Table.
type ValueKind uint8

const (
	ValueMissing ValueKind = iota
	ValueText
	ValueCode
)

// Value is one table cell: missing, free text, or a vocabulary code.
type Value struct {
	Kind ValueKind
	Text string
	Code int
}

// Missing returns the explicit missing-value marker.
func Missing() Value { return Value{Kind: ValueMissing} }

// Text wraps a raw string cell.
func Text(s string) Value { return Value{Kind: ValueText, Text: s} }

// Code wraps an ordinal vocabulary code.
func Code(c int) Value { return Value{Kind: ValueCode, Code: c} }

// IsMissing reports whether the cell carries no value.
func (v Value) IsMissing() bool { return v.Kind == ValueMissing }

// String renders the cell; missing cells render as "".
func (v Value) String() string {
	switch v.Kind {
	case ValueCode:
		return strconv.Itoa(v.Code)
	case ValueText:
		return v.Text
	default:
		return ""
	}
}

// Row is a NormalizedRow once it went through the normalizer.
type Row []Value

// Table is a rectangular dataset; every row has len(Columns) cells.
type Table struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// ColumnIndex finds a column by exact name.
func (t Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// Clone deep-copies the table so callers can hand it to independent writers.
func (t Table) Clone() Table {
	out := Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append(Row(nil), row...)
	}
	return out
}
