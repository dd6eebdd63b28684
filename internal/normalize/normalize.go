// Package normalize converts raw string cells into typed values: timestamps,
// weekday names, device labels, decimal money, integer counts, booleans, and
// the derived purchase-delay columns.
//
// Coercion policy (see DESIGN.md): every coercion is row-level and fallible.
// A malformed date, money, int, or bool cell degrades to missing and is
// reported through the warn callback; an out-of-domain weekday code aborts
// the batch with a ValidationError. Nothing is coerced column-wide.
package normalize

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"purchasereport/internal/config"
	"purchasereport/internal/dataset"
)

// WarnFn receives row-local coercion failures that degraded to missing.
type WarnFn func(line int, field string, err error)

var weekdayNames = map[int64]string{
	1: "Monday", 2: "Tuesday", 3: "Wednesday", 4: "Thursday",
	5: "Friday", 6: "Saturday", 7: "Sunday",
}

// Apply produces a normalized copy of t with the same row count and order.
// Two derived columns (days to first purchase, delay bucket) are appended
// when cfg.Delay names them.
func Apply(t *dataset.Table, cfg config.Normalize, warn WarnFn) (*dataset.Table, error) {
	if warn == nil {
		warn = func(int, string, error) {}
	}

	columns := append([]string(nil), t.Columns...)
	addDelay := cfg.Delay.DaysField != "" && cfg.Delay.BucketField != ""
	if addDelay {
		columns = append(columns, cfg.Delay.DaysField, cfg.Delay.BucketField)
	}

	out := dataset.New(columns)
	out.Rows = make([]dataset.Row, 0, t.Len())

	dateIx := colIndexes(t, cfg.DateFields)
	moneyIx := colIndexes(t, cfg.MoneyFields)
	intIx := colIndexes(t, cfg.IntFields)
	boolIx := colIndexes(t, cfg.BoolFields)
	deviceIx := t.ColIndex(cfg.DeviceField)
	weekdayIx := t.ColIndex(cfg.WeekdayField)
	signupIx := t.ColIndex(cfg.Delay.SignupField)
	purchaseIx := t.ColIndex(cfg.Delay.PurchaseField)

	for _, r := range t.Rows {
		row := dataset.Row{V: make([]any, len(columns)), Line: r.Line}
		copy(row.V, r.V)

		for i, ix := range dateIx {
			if ix < 0 {
				continue
			}
			row.V[ix] = coerce(row.V[ix], r.Line, cfg.DateFields[i], warn, func(s string) (any, error) {
				return time.Parse(cfg.DateLayout, s)
			})
		}
		for i, ix := range moneyIx {
			if ix < 0 {
				continue
			}
			row.V[ix] = coerce(row.V[ix], r.Line, cfg.MoneyFields[i], warn, func(s string) (any, error) {
				return decimal.NewFromString(s)
			})
		}
		for i, ix := range intIx {
			if ix < 0 {
				continue
			}
			row.V[ix] = coerce(row.V[ix], r.Line, cfg.IntFields[i], warn, func(s string) (any, error) {
				return strconv.ParseInt(s, 10, 64)
			})
		}
		for i, ix := range boolIx {
			if ix < 0 {
				continue
			}
			row.V[ix] = coerce(row.V[ix], r.Line, cfg.BoolFields[i], warn, func(s string) (any, error) {
				return strconv.ParseBool(s)
			})
		}

		if deviceIx >= 0 {
			row.V[deviceIx] = normalizeDevice(row.V[deviceIx])
		}

		if weekdayIx >= 0 {
			name, err := weekdayName(row.V[weekdayIx])
			if err != nil {
				return nil, &dataset.ValidationError{Line: r.Line, Field: cfg.WeekdayField, Err: err}
			}
			row.V[weekdayIx] = name
		}

		if addDelay {
			days, ok := daysBetween(row.V, signupIx, purchaseIx)
			di := out.ColIndex(cfg.Delay.DaysField)
			bi := out.ColIndex(cfg.Delay.BucketField)
			if ok {
				row.V[di] = days
				row.V[bi] = Bucketize(days, DefaultBuckets)
			}
		}

		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// coerce applies parse to a string cell. Missing stays missing; an already
// typed cell passes through; a parse failure degrades to missing and warns.
func coerce(v any, line int, field string, warn WarnFn, parse func(string) (any, error)) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	parsed, err := parse(s)
	if err != nil {
		warn(line, field, err)
		return nil
	}
	return parsed
}

// normalizeDevice maps a missing or empty device to the catch-all label and
// keeps every other value as an open string label.
func normalizeDevice(v any) any {
	s, _ := v.(string)
	if s == "" {
		return "others"
	}
	return s
}

// weekdayName maps codes 1..7 to day names. The input domain is exactly the
// seven integers; a missing cell stays missing, anything else is an error.
func weekdayName(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("weekday code must be a raw cell, got %T", v)
	}
	code, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("weekday code %q is not an integer", s)
	}
	name, ok := weekdayNames[code]
	if !ok {
		return nil, fmt.Errorf("weekday code %d outside 1..7", code)
	}
	return name, nil
}

// daysBetween returns whole days from signup to first purchase, or ok=false
// when either timestamp is missing.
func daysBetween(v []any, signupIx, purchaseIx int) (int64, bool) {
	if signupIx < 0 || purchaseIx < 0 {
		return 0, false
	}
	signup, ok1 := v[signupIx].(time.Time)
	purchase, ok2 := v[purchaseIx].(time.Time)
	if !ok1 || !ok2 {
		return 0, false
	}
	return int64(purchase.Sub(signup).Hours() / 24), true
}

func colIndexes(t *dataset.Table, names []string) []int {
	ix := make([]int, len(names))
	for i, n := range names {
		ix[i] = t.ColIndex(n)
	}
	return ix
}
