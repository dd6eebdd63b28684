package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	p, err := Decode(strings.NewReader(`{
		"job": "test",
		"input": {"path": "in.csv", "options": {"comma": ";", "trim_space": false}},
		"store_type": {"field": "store_type_counts", "discovery": "scan_all"},
		"reports": [{
			"title": "By device",
			"group_by": "device",
			"measures": [{"kind": "count", "name": "users"}],
			"filter": {"field": "is_promo_user", "equals": "true"}
		}]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "test", p.Job)
	assert.Equal(t, ';', p.Input.Options.Rune("comma", ','))
	assert.False(t, p.Input.Options.Bool("trim_space", true))
	assert.Equal(t, "scan_all", p.StoreType.Discovery)
	require.Len(t, p.Reports, 1)
	require.NotNil(t, p.Reports[0].Filter)
	assert.Equal(t, "true", p.Reports[0].Filter.Equals)
}

func TestDecode_UnknownFieldFails(t *testing.T) {
	t.Parallel()

	_, err := Decode(strings.NewReader(`{"jobb": "typo"}`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	hasError := func(issues []Issue) bool {
		for _, i := range issues {
			if i.Severity == SeverityError {
				return true
			}
		}
		return false
	}

	assert.False(t, hasError(Validate(Default())), "the built-in pipeline must validate")

	p := Default()
	p.Input.Path = ""
	assert.True(t, hasError(Validate(p)))

	p = Default()
	p.Reports[0].Measures = []Measure{{Kind: "median", Field: "x", Name: "m"}}
	assert.True(t, hasError(Validate(p)))

	p = Default()
	p.Storage = &Storage{Kind: "oracle", DSN: "x"}
	assert.True(t, hasError(Validate(p)))

	p = Default()
	p.Reports = nil
	issues := Validate(p)
	assert.False(t, hasError(issues))
	assert.NotEmpty(t, issues, "missing reports warns")
}

func TestDefault_PromoReportsCoverBothFlagValues(t *testing.T) {
	t.Parallel()

	p := Default()
	assert.Equal(t, "Purchases per store type", p.StoreType.ReportTitle)

	flags := map[string]bool{}
	for _, r := range p.Reports {
		if r.Filter != nil && r.Filter.Field == "is_promo_user" {
			flags[r.Filter.Equals] = true
		}
	}
	assert.True(t, flags["true"], "promo tabulation")
	assert.True(t, flags["false"], "non-promo tabulation")
}

func TestOptions_Accessors(t *testing.T) {
	t.Parallel()

	o := Options{
		"n_float":  float64(3),
		"n_string": "4",
		"flag":     "true",
		"hm":       map[string]any{"A": "a", "bad": 1},
	}
	assert.Equal(t, 3, o.Int("n_float", 0))
	assert.Equal(t, 4, o.Int("n_string", 0))
	assert.Equal(t, 9, o.Int("absent", 9))
	assert.True(t, o.Bool("flag", false))
	assert.Equal(t, map[string]string{"A": "a"}, o.StringMap("hm"))
	assert.Nil(t, o.StringMap("absent"))
}
