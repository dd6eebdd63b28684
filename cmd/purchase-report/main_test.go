package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasereport/internal/dataset"
)

const sampleCSV = `user_id,signup_time,first_purchase_time,last_purchase_time,device,country,signup_weekday,purchase_count,total_spend,is_promo_user,store_type_counts
u1,2024-01-01 00:00:00,2024-01-04 00:00:00,2024-02-01 00:00:00,ios,US,1,3,30.00,true,"{""Grocery"":2}"
u2,2024-01-02 00:00:00,2024-01-12 00:00:00,2024-03-01 00:00:00,web,US,2,1,10.00,false,"{""Grocery"":1}"
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "purchases.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))
	return path
}

func TestRun_UnknownFlagIsUsageError(t *testing.T) {
	var out, errOut strings.Builder
	code := run([]string{"-no-such-flag"}, &out, &errOut)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut.String(), "flag")
}

func TestRun_MissingInputFails(t *testing.T) {
	var out, errOut strings.Builder
	code := run([]string{"-input", filepath.Join(t.TempDir(), "absent.csv")}, &out, &errOut)
	assert.Equal(t, 1, code)
}

func TestOpenInput_MissingFileIsIOError(t *testing.T) {
	var errOut strings.Builder
	_, cleanup, err := openInput(filepath.Join(t.TempDir(), "absent.csv"), &errOut)
	defer cleanup()
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrIO))
}

func TestRun_ValidateOnly(t *testing.T) {
	var out, errOut strings.Builder
	code := run([]string{"-validate", "-input", "whatever.csv"}, &out, &errOut)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "configuration is valid")
}

func TestRun_InvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"job": 3}`), 0o644))

	var out, errOut strings.Builder
	code := run([]string{"-config", path}, &out, &errOut)
	assert.Equal(t, 1, code)
}

func TestRun_EndToEnd(t *testing.T) {
	var out, errOut strings.Builder
	code := run([]string{"-input", writeSample(t)}, &out, &errOut)
	require.Equal(t, 0, code, "stderr: %s", errOut.String())

	assert.Contains(t, out.String(), "Purchases by device")
	assert.Contains(t, out.String(), "Grand Total")
}

func TestRun_EndToEndWithSQLiteAndHTML(t *testing.T) {
	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "report.html")
	dbPath := filepath.Join(dir, "report.db")

	t.Setenv("PREPORT_STORAGE_DSN", dbPath)

	var out, errOut strings.Builder
	code := run([]string{
		"-input", writeSample(t),
		"-html-out", htmlPath,
		"-storage", "sqlite",
	}, &out, &errOut)
	require.Equal(t, 0, code, "stderr: %s", errOut.String())

	html, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "grand-total")

	st, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.Positive(t, st.Size())
}
