// Package aggregate is a declarative grouping-and-measure engine over a
// dataset.Table.
//
// Measures accumulate in decimal.Decimal so monetary sums and weighted means
// stay exact regardless of row order. Missing-value policy:
//   - count counts rows, missing or not
//   - sum treats a missing cell as 0
//   - mean and weighted mean exclude a row with a missing value from both
//     numerator and denominator, never from the group's row count
//
// Every result carries a trailing grand-total row recomputed over the full
// filtered row set, not folded from the per-group rows, so weighted means
// stay correct.
package aggregate

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"purchasereport/internal/dataset"
)

// GrandTotalLabel is the sentinel group value of the trailing total row.
const GrandTotalLabel = "Grand Total"

// MeasureKind selects the computation.
type MeasureKind string

const (
	Count        MeasureKind = "count"
	Sum          MeasureKind = "sum"
	Mean         MeasureKind = "mean"
	WeightedMean MeasureKind = "weighted_mean"
)

// Measure is one requested output column.
type Measure struct {
	Kind        MeasureKind
	Field       string
	WeightField string // weighted_mean only
	Name        string
}

// Spec describes one summary table.
type Spec struct {
	GroupBy  string
	Measures []Measure
	// Filter drops rows before grouping; nil keeps everything.
	Filter func(t *dataset.Table, r dataset.Row) bool
	// SortBy names the measure to order groups by, descending. Empty falls
	// back to the first measure. Ties break on the group key ascending so
	// output order is deterministic.
	SortBy string
	// TotalLabel overrides GrandTotalLabel when non-empty.
	TotalLabel string
}

// Row is one aggregate output row.
type Row struct {
	Key    string
	Values []decimal.Decimal
	// Missing marks measures with an empty population (e.g. mean over a
	// group whose cells are all missing).
	Missing []bool
}

// Result is an ordered summary table: per-group rows sorted descending by
// the sort measure, then the grand-total row.
type Result struct {
	Title        string
	GroupColumn  string
	MeasureNames []string
	Rows         []Row
}

// GroupSummarize groups t by spec.GroupBy and computes the requested
// measures per group plus the grand total.
func GroupSummarize(t *dataset.Table, spec Spec) (*Result, error) {
	if len(spec.Measures) == 0 {
		return nil, fmt.Errorf("aggregate: no measures requested")
	}
	groupIx := t.ColIndex(spec.GroupBy)
	if groupIx < 0 {
		return nil, fmt.Errorf("aggregate: group column %q not in table", spec.GroupBy)
	}
	fieldIx := make([]int, len(spec.Measures))
	weightIx := make([]int, len(spec.Measures))
	for i, m := range spec.Measures {
		fieldIx[i], weightIx[i] = -1, -1
		if m.Kind == Count {
			continue
		}
		fieldIx[i] = t.ColIndex(m.Field)
		if fieldIx[i] < 0 {
			return nil, fmt.Errorf("aggregate: measure %q: field %q not in table", m.Name, m.Field)
		}
		if m.Kind == WeightedMean {
			weightIx[i] = t.ColIndex(m.WeightField)
			if weightIx[i] < 0 {
				return nil, fmt.Errorf("aggregate: measure %q: weight field %q not in table", m.Name, m.WeightField)
			}
		}
	}

	groups := map[string]*accumulator{}
	var order []string
	total := newAccumulator(len(spec.Measures))

	for _, r := range t.Rows {
		if spec.Filter != nil && !spec.Filter(t, r) {
			continue
		}
		key := CellString(r.V[groupIx])
		acc, ok := groups[key]
		if !ok {
			acc = newAccumulator(len(spec.Measures))
			groups[key] = acc
			order = append(order, key)
		}
		acc.add(spec.Measures, fieldIx, weightIx, r)
		total.add(spec.Measures, fieldIx, weightIx, r)
	}

	res := &Result{
		GroupColumn:  spec.GroupBy,
		MeasureNames: make([]string, len(spec.Measures)),
	}
	for i, m := range spec.Measures {
		res.MeasureNames[i] = m.Name
	}

	for _, key := range order {
		res.Rows = append(res.Rows, groups[key].finish(key, spec.Measures))
	}
	sortRows(res.Rows, sortIndex(spec))

	label := spec.TotalLabel
	if label == "" {
		label = GrandTotalLabel
	}
	res.Rows = append(res.Rows, total.finish(label, spec.Measures))
	return res, nil
}

// ColumnSumSpec describes a summary over a set of numeric columns, one
// output row per column. This is the transposed counterpart of
// GroupSummarize for categories that live as columns rather than as cell
// values, e.g. the decomposed store-type counts.
type ColumnSumSpec struct {
	Columns []string
	// GroupColumn labels the key column of the result, e.g. "store_type".
	GroupColumn string
	MeasureName string
	// TotalLabel overrides GrandTotalLabel when non-empty.
	TotalLabel string
}

// SumColumns totals each named column over all rows, ordered descending by
// total with ties broken on the column name. Missing cells count as 0. The
// trailing grand-total row is the sum over every named column.
func SumColumns(t *dataset.Table, spec ColumnSumSpec) (*Result, error) {
	if len(spec.Columns) == 0 {
		return nil, fmt.Errorf("aggregate: no columns to sum")
	}
	ix := make([]int, len(spec.Columns))
	for i, c := range spec.Columns {
		ix[i] = t.ColIndex(c)
		if ix[i] < 0 {
			return nil, fmt.Errorf("aggregate: column %q not in table", c)
		}
	}

	sums := make([]decimal.Decimal, len(spec.Columns))
	var total decimal.Decimal
	for _, r := range t.Rows {
		for i, cx := range ix {
			if v, ok := CellDecimal(r.V[cx]); ok {
				sums[i] = sums[i].Add(v)
				total = total.Add(v)
			}
		}
	}

	res := &Result{
		GroupColumn:  spec.GroupColumn,
		MeasureNames: []string{spec.MeasureName},
	}
	for i, c := range spec.Columns {
		res.Rows = append(res.Rows, Row{
			Key:     c,
			Values:  []decimal.Decimal{sums[i]},
			Missing: []bool{false},
		})
	}
	sortRows(res.Rows, 0)

	label := spec.TotalLabel
	if label == "" {
		label = GrandTotalLabel
	}
	res.Rows = append(res.Rows, Row{
		Key:     label,
		Values:  []decimal.Decimal{total},
		Missing: []bool{false},
	})
	return res, nil
}

func sortIndex(spec Spec) int {
	if spec.SortBy == "" {
		return 0
	}
	for i, m := range spec.Measures {
		if m.Name == spec.SortBy {
			return i
		}
	}
	return 0
}

func sortRows(rows []Row, ix int) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Missing[ix] != b.Missing[ix] {
			return !a.Missing[ix]
		}
		if !a.Missing[ix] && !a.Values[ix].Equal(b.Values[ix]) {
			return a.Values[ix].GreaterThan(b.Values[ix])
		}
		return a.Key < b.Key
	})
}

// accumulator holds per-measure running state for one group.
type accumulator struct {
	rows int64
	sum  []decimal.Decimal // sum / mean numerator / weighted numerator
	den  []decimal.Decimal // weighted mean denominator
	n    []int64           // mean population
}

func newAccumulator(measures int) *accumulator {
	return &accumulator{
		sum: make([]decimal.Decimal, measures),
		den: make([]decimal.Decimal, measures),
		n:   make([]int64, measures),
	}
}

func (a *accumulator) add(measures []Measure, fieldIx, weightIx []int, r dataset.Row) {
	a.rows++
	for i, m := range measures {
		switch m.Kind {
		case Count:
		case Sum:
			if v, ok := CellDecimal(r.V[fieldIx[i]]); ok {
				a.sum[i] = a.sum[i].Add(v)
			}
		case Mean:
			if v, ok := CellDecimal(r.V[fieldIx[i]]); ok {
				a.sum[i] = a.sum[i].Add(v)
				a.n[i]++
			}
		case WeightedMean:
			v, okV := CellDecimal(r.V[fieldIx[i]])
			w, okW := CellDecimal(r.V[weightIx[i]])
			if okV && okW {
				a.sum[i] = a.sum[i].Add(v.Mul(w))
				a.den[i] = a.den[i].Add(w)
			}
		}
	}
}

// meanPlaces bounds non-terminating divisions (e.g. 10/3).
const meanPlaces = 6

func (a *accumulator) finish(key string, measures []Measure) Row {
	row := Row{
		Key:     key,
		Values:  make([]decimal.Decimal, len(measures)),
		Missing: make([]bool, len(measures)),
	}
	for i, m := range measures {
		switch m.Kind {
		case Count:
			row.Values[i] = decimal.NewFromInt(a.rows)
		case Sum:
			row.Values[i] = a.sum[i]
		case Mean:
			if a.n[i] == 0 {
				row.Missing[i] = true
				continue
			}
			row.Values[i] = a.sum[i].DivRound(decimal.NewFromInt(a.n[i]), meanPlaces)
		case WeightedMean:
			if a.den[i].IsZero() {
				row.Missing[i] = true
				continue
			}
			row.Values[i] = a.sum[i].DivRound(a.den[i], meanPlaces)
		}
	}
	return row
}

// CellDecimal coerces a typed cell to decimal. ok=false means missing or
// non-numeric.
func CellDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Decimal{}, false
	case decimal.Decimal:
		return t, true
	case int64:
		return decimal.NewFromInt(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case float64:
		return decimal.NewFromFloat(t), true
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	default:
		return decimal.Decimal{}, false
	}
}

// CellString renders a cell as its canonical grouping/filter string. Missing
// cells group under the empty label.
func CellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case decimal.Decimal:
		return t.String()
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

// EqualsFilter builds a Spec.Filter matching rows whose field's canonical
// string equals value. Boolean-flag tabulation is this filter over "true" /
// "false".
func EqualsFilter(field, value string) func(t *dataset.Table, r dataset.Row) bool {
	return func(t *dataset.Table, r dataset.Row) bool {
		ix := t.ColIndex(field)
		if ix < 0 {
			return false
		}
		return CellString(r.V[ix]) == value
	}
}
