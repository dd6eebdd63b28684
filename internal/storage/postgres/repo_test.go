package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasereport/internal/storage"
)

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	ddl, err := buildCreateSQL(storage.TableSpec{
		Name: "spend_by_country",
		Columns: []storage.ColumnSpec{
			{Name: "run_id", Type: "text"},
			{Name: "written_at", Type: "timestamp"},
			{Name: "spend", Type: "numeric"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS spend_by_country (run_id TEXT, written_at TIMESTAMPTZ, spend NUMERIC)",
		ddl)

	_, err = buildCreateSQL(storage.TableSpec{})
	assert.Error(t, err)
}

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	sql, args, err := buildInsertSQL("t", []string{"a", "b"}, [][]any{
		{"x", 1},
		{"y", nil},
	})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO t (a, b) VALUES ($1, $2), ($3, $4)", sql)
	assert.Equal(t, []any{"x", 1, "y", nil}, args)

	_, _, err = buildInsertSQL("t", []string{"a", "b"}, [][]any{{"x"}})
	assert.Error(t, err)
}
