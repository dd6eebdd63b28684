package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasereport/internal/config"
	"purchasereport/internal/dataset"
)

func TestRead_NormalizesHeadersAndCells(t *testing.T) {
	t.Parallel()

	in := "\ufeffUser ID,Device,Total Spend\nu1,ios,12.50\nu2,, \n"
	tbl, err := Read(strings.NewReader(in), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"user_id", "device", "total_spend"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())

	v, ok := tbl.Cell(0, "total_spend")
	require.True(t, ok)
	assert.Equal(t, "12.50", v)

	// empty and whitespace-only cells are missing, not ""
	_, ok = tbl.Cell(1, "device")
	assert.False(t, ok)
	_, ok = tbl.Cell(1, "total_spend")
	assert.False(t, ok)

	// file order and line numbers preserved
	assert.Equal(t, 2, tbl.Rows[0].Line)
	assert.Equal(t, 3, tbl.Rows[1].Line)
}

func TestRead_HeaderMapAndDelimiter(t *testing.T) {
	t.Parallel()

	in := "uid;dev\n1;ios\n"
	opt := config.Options{
		"comma":      ";",
		"header_map": map[string]any{"uid": "user_id"},
	}
	tbl, err := Read(strings.NewReader(in), opt)
	require.NoError(t, err)
	assert.Equal(t, []string{"user_id", "dev"}, tbl.Columns)
}

func TestRead_ArityMismatchIsParseError(t *testing.T) {
	t.Parallel()

	in := "a,b\n1,2\n1,2,3\n"
	_, err := Read(strings.NewReader(in), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrParse))
}

func TestRead_Charset(t *testing.T) {
	t.Parallel()

	// "Zürich" in Latin-1: 0xFC for ü.
	in := append([]byte("city\nZ"), 0xFC, 'r', 'i', 'c', 'h', '\n')
	tbl, err := Read(strings.NewReader(string(in)), config.Options{"charset": "latin-1"})
	require.NoError(t, err)
	v, ok := tbl.Cell(0, "city")
	require.True(t, ok)
	assert.Equal(t, "Zürich", v)

	_, err = Read(strings.NewReader("a\n1\n"), config.Options{"charset": "ebcdic"})
	assert.Error(t, err)
}

func TestReadFile_MissingFileIsIOError(t *testing.T) {
	t.Parallel()

	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.csv"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrIO))
}

func TestReadFile_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))

	tbl, err := ReadFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
}
