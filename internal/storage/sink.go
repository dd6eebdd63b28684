package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"purchasereport/internal/aggregate"
)

// SaveResult persists one aggregate result. The table is named from the
// result title; each row carries the run ID and a written-at timestamp so
// repeated runs over the same input stay distinguishable.
//
// Missing measures are stored as NULL; populated measures are stored as
// their exact decimal string (NUMERIC-compatible on every backend).
func SaveResult(ctx context.Context, repo Repository, res *aggregate.Result, runID string, now time.Time) (int64, error) {
	table := TableName(res.Title)
	if table == "" {
		return 0, fmt.Errorf("storage: result title %q yields an empty table name", res.Title)
	}

	spec := TableSpec{
		Name: table,
		Columns: []ColumnSpec{
			{Name: "run_id", Type: "text"},
			{Name: "written_at", Type: "timestamp"},
			{Name: TableName(res.GroupColumn), Type: "text"},
		},
	}
	for _, m := range res.MeasureNames {
		spec.Columns = append(spec.Columns, ColumnSpec{Name: TableName(m), Type: "numeric"})
	}
	if err := repo.EnsureTable(ctx, spec); err != nil {
		return 0, fmt.Errorf("ensure table %s: %w", table, err)
	}

	columns := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		columns[i] = c.Name
	}

	rows := make([][]any, 0, len(res.Rows))
	for _, r := range res.Rows {
		row := make([]any, 0, len(columns))
		row = append(row, runID, now.UTC().Format(time.RFC3339Nano), r.Key)
		for i := range res.MeasureNames {
			if r.Missing[i] {
				row = append(row, nil)
			} else {
				row = append(row, r.Values[i].String())
			}
		}
		rows = append(rows, row)
	}

	n, err := repo.InsertRows(ctx, table, columns, rows)
	if err != nil {
		return n, fmt.Errorf("insert into %s: %w", table, err)
	}
	return n, nil
}

// TableName lowercases a title into an identifier-safe SQL name: spaces and
// dashes become underscores, every other non-alphanumeric rune is dropped,
// runs of underscores collapse.
func TableName(title string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		case r == ' ' || r == '-' || r == '_':
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
