package storetype

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasereport/internal/dataset"
)

func payloadTable(payloads ...any) *dataset.Table {
	t := dataset.New([]string{"device", "store_type_counts"})
	for i, p := range payloads {
		t.Rows = append(t.Rows, dataset.Row{V: []any{"ios", p}, Line: i + 2})
	}
	return t
}

func TestDecompose_CanonicalFromFirstNonEmptyPayload(t *testing.T) {
	t.Parallel()

	tbl := payloadTable(
		nil,
		`{"Grocery":2}`,
		`{"Grocery":0,"Restaurant":1}`,
	)

	// canonical set comes from row 2, the first with a payload
	out, names, err := Decompose(tbl, "store_type_counts", "")
	require.Error(t, err, "row 3 introduces Restaurant, unknown to the canonical set")
	assert.True(t, errors.Is(err, dataset.ErrSchema))
	assert.Nil(t, out)
	assert.Nil(t, names)
}

func TestDecompose_SpecScenario(t *testing.T) {
	t.Parallel()

	tbl := payloadTable(
		`{"Grocery":2}`,
	)
	tbl.Rows[0].V[0] = "others"
	tbl.Rows = append(tbl.Rows, dataset.Row{V: []any{"ios", `{"Grocery":0,"Restaurant":1}`}, Line: 3})

	// scan_all unions the keys, so both rows decompose cleanly
	out, names, err := Decompose(tbl, "store_type_counts", DiscoverScanAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"Grocery", "Restaurant"}, names)
	assert.Equal(t, []string{"device", "Grocery", "Restaurant"}, out.Columns)

	v, ok := out.Cell(0, "Grocery")
	require.True(t, ok)
	assert.Equal(t, int64(2), v)
	_, ok = out.Cell(0, "Restaurant")
	assert.False(t, ok, "row without the key gets a missing cell")

	// a present zero count stays a populated zero, not missing
	v, ok = out.Cell(1, "Grocery")
	require.True(t, ok)
	assert.Equal(t, int64(0), v)
	v, _ = out.Cell(1, "Restaurant")
	assert.Equal(t, int64(1), v)
}

func TestDecompose_NoPayloadAnywhere(t *testing.T) {
	t.Parallel()

	tbl := payloadTable(nil, nil)
	out, names, err := Decompose(tbl, "store_type_counts", "")
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Equal(t, []string{"device"}, out.Columns, "payload column is still dropped")
	assert.Equal(t, 2, out.Len())
}

func TestDecompose_RowCountPreserved(t *testing.T) {
	t.Parallel()

	tbl := payloadTable(`{"Grocery":1}`, nil, `{"Grocery":5}`)
	out, _, err := Decompose(tbl, "store_type_counts", "")
	require.NoError(t, err)
	assert.Equal(t, tbl.Len(), out.Len())
}

func TestDecompose_MalformedPayloadAborts(t *testing.T) {
	t.Parallel()

	tbl := payloadTable(`{"Grocery":`)
	_, _, err := Decompose(tbl, "store_type_counts", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrParse))

	tbl = payloadTable(`{"Grocery":1.5}`)
	_, _, err = Decompose(tbl, "store_type_counts", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrParse), "non-integer count is structural")
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"Grocery", "Grocery"},
		{"Pet Store", "Pet_Store"},
		{"Café & Bar", "Café__Bar"},
		{"24/7 Shop", "247_Shop"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, SanitizeName(tc.in), "key %q", tc.in)
	}
}
