package mssql

import (
	"database/sql"
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
			{Name: "country", Type: "text"},
			{Name: "spend", Type: "numeric"},
			{Name: "written_at", Type: "timestamp"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"IF OBJECT_ID(N'spend_by_country', N'U') IS NULL CREATE TABLE spend_by_country "+
			"(country NVARCHAR(400), spend DECIMAL(28, 6), written_at DATETIMEOFFSET)",
		ddl)
}

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	query, args, err := buildInsertSQL("t", []string{"a", "b"}, [][]any{{"x", "y"}})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO t (a, b) VALUES (@p1, @p2)", query)
	require.Len(t, args, 2)
	assert.Equal(t, sql.Named("p1", "x"), args[0])
	assert.Equal(t, sql.Named("p2", "y"), args[1])
}
