// Package dataset defines the in-memory table model shared by every pipeline
// stage (load → normalize → decompose → aggregate).
//
// Conventions:
//   - A cell is `any`; nil means "missing". Stages never invent a zero value
//     for a missing cell.
//   - Each stage consumes its input table and produces a new one; tables are
//     never mutated after their producing stage returns.
//   - Row.Line is the 1-based record number in the source file and survives
//     every stage, so row-level diagnostics can always point at the file.
package dataset

import "fmt"

// Row is one record. V is positional and aligned with the owning Table's
// Columns slice.
type Row struct {
	V    []any
	Line int
}

// Clone returns a deep copy of the row's value slice (cell values themselves
// are treated as immutable).
func (r Row) Clone() Row {
	v := make([]any, len(r.V))
	copy(v, r.V)
	return Row{V: v, Line: r.Line}
}

// Table is an ordered, column-named set of rows.
type Table struct {
	Columns []string
	Rows    []Row
}

// New returns an empty table with the given column set.
func New(columns []string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// ColIndex returns the position of a column, or -1 when absent.
func (t *Table) ColIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at (row, column name). Missing columns and missing
// cells are both reported as (nil, false)/(v, true) via ok.
func (t *Table) Cell(row int, column string) (any, bool) {
	ix := t.ColIndex(column)
	if ix < 0 || row < 0 || row >= len(t.Rows) {
		return nil, false
	}
	v := t.Rows[row].V[ix]
	return v, v != nil
}

// Len returns the row count.
func (t *Table) Len() int { return len(t.Rows) }

// Append adds a row, validating arity against the column set.
func (t *Table) Append(r Row) error {
	if len(r.V) != len(t.Columns) {
		return &ParseError{Line: r.Line, Err: fmt.Errorf("row has %d fields, table has %d columns", len(r.V), len(t.Columns))}
	}
	t.Rows = append(t.Rows, r)
	return nil
}
