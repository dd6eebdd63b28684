// Package storetype flattens the per-user store-type purchase map (a JSON
// object of store-type name → count held in one CSV column) into one numeric
// column per store type.
//
// The canonical column set is an explicit value returned to the caller and
// threaded into later stages; nothing here is ambient state. Two discovery
// modes exist:
//   - CanonicalColumns: key set of the first row with a non-empty payload.
//     Later rows carrying an unknown key abort with a SchemaError.
//   - InferColumns: full scan, union of all keys. Never produces a
//     SchemaError afterwards; use it when the dataset is not trusted to be
//     key-stable.
package storetype

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"purchasereport/internal/dataset"
)

// Discovery modes accepted by Decompose.
const (
	DiscoverFirstRow = "first_row"
	DiscoverScanAll  = "scan_all"
)

// Column pairs a raw store-type key with its sanitized column name.
type Column struct {
	Key  string
	Name string
}

// CanonicalColumns derives the canonical store-type column list from the
// first row whose payload is present and non-empty. An empty table, or a
// table with no payload at all, yields an empty list.
func CanonicalColumns(t *dataset.Table, field string) ([]Column, error) {
	ix := t.ColIndex(field)
	if ix < 0 {
		return nil, nil
	}
	for _, r := range t.Rows {
		counts, ok, err := parsePayload(r.V[ix], r.Line)
		if err != nil {
			return nil, err
		}
		if ok && len(counts) > 0 {
			return toColumns(counts), nil
		}
	}
	return nil, nil
}

// InferColumns scans every row and unions all payload keys. Grounded on the
// two-phase schema-inference alternative: it trades a second pass for the
// guarantee that decomposition cannot hit an unknown key.
func InferColumns(t *dataset.Table, field string) ([]Column, error) {
	ix := t.ColIndex(field)
	if ix < 0 {
		return nil, nil
	}
	union := map[string]struct{}{}
	for _, r := range t.Rows {
		counts, ok, err := parsePayload(r.V[ix], r.Line)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for k := range counts {
			union[k] = struct{}{}
		}
	}
	if len(union) == 0 {
		return nil, nil
	}
	m := make(map[string]int64, len(union))
	for k := range union {
		m[k] = 0
	}
	return toColumns(m), nil
}

// Decompose replaces the payload column with the canonical numeric columns.
// The returned column names (sanitized) are the explicit schema for
// downstream grouping. discovery selects the mode; empty means first_row.
func Decompose(t *dataset.Table, field, discovery string) (*dataset.Table, []string, error) {
	var (
		cols []Column
		err  error
	)
	switch discovery {
	case "", DiscoverFirstRow:
		cols, err = CanonicalColumns(t, field)
	case DiscoverScanAll:
		cols, err = InferColumns(t, field)
	default:
		return nil, nil, fmt.Errorf("unknown discovery mode %q", discovery)
	}
	if err != nil {
		return nil, nil, err
	}
	out, err := DecomposeWith(t, field, cols, discovery != DiscoverScanAll)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return out, names, nil
}

// DecomposeWith applies a known canonical column list. Every row receives
// every canonical column; a row whose payload lacks a key gets a missing
// cell, a row with no payload at all gets all-missing. When strict is true,
// a payload key outside the canonical set aborts with a SchemaError.
//
// The payload column itself is dropped: its content is fully absorbed into
// the named columns.
func DecomposeWith(t *dataset.Table, field string, cols []Column, strict bool) (*dataset.Table, error) {
	ix := t.ColIndex(field)
	if ix < 0 {
		return t, nil
	}

	columns := make([]string, 0, len(t.Columns)-1+len(cols))
	for i, c := range t.Columns {
		if i != ix {
			columns = append(columns, c)
		}
	}
	for _, c := range cols {
		columns = append(columns, c.Name)
	}

	keyToCol := make(map[string]int, len(cols))
	for i, c := range cols {
		keyToCol[c.Key] = len(t.Columns) - 1 + i
	}

	out := dataset.New(columns)
	out.Rows = make([]dataset.Row, 0, t.Len())

	for _, r := range t.Rows {
		counts, ok, err := parsePayload(r.V[ix], r.Line)
		if err != nil {
			return nil, err
		}

		row := dataset.Row{V: make([]any, len(columns)), Line: r.Line}
		n := 0
		for i, v := range r.V {
			if i == ix {
				continue
			}
			row.V[n] = v
			n++
		}

		if ok {
			for k, v := range counts {
				ci, known := keyToCol[k]
				if !known {
					if strict {
						return nil, &dataset.SchemaError{Line: r.Line, Key: k}
					}
					continue
				}
				row.V[ci] = v
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// parsePayload decodes one payload cell. ok=false means the cell was
// missing. Undecodable syntax is structural and aborts with a ParseError.
func parsePayload(v any, line int) (map[string]int64, bool, error) {
	if v == nil {
		return nil, false, nil
	}
	s, isStr := v.(string)
	if !isStr {
		return nil, false, &dataset.ParseError{Line: line, Err: fmt.Errorf("payload cell is %T, want string", v)}
	}
	var raw map[string]json.Number
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, false, &dataset.ParseError{Line: line, Err: fmt.Errorf("payload: %w", err)}
	}
	counts := make(map[string]int64, len(raw))
	for k, num := range raw {
		n, err := num.Int64()
		if err != nil {
			return nil, false, &dataset.ParseError{Line: line, Err: fmt.Errorf("payload key %q: count %q is not an integer", k, num)}
		}
		counts[k] = n
	}
	return counts, true, nil
}

func toColumns(counts map[string]int64) []Column {
	cols := make([]Column, 0, len(counts))
	for k := range counts {
		cols = append(cols, Column{Key: k, Name: SanitizeName(k)})
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Key < cols[j].Key })
	return cols
}

// SanitizeName turns a store-type key into an identifier-safe column name:
// spaces become underscores, every other non-alphanumeric rune is stripped.
func SanitizeName(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}
