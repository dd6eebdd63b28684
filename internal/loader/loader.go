// Package loader reads the raw purchase CSV into a dataset.Table.
//
// The loader does no transformation beyond header normalization and
// empty-cell → nil mapping; typing and coercion belong to the normalize
// stage.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"purchasereport/internal/config"
	"purchasereport/internal/dataset"
)

// Read parses CSV from r into a table. Column names are normalized
// (lowercased, spaces → underscores, BOM stripped from the first header) and
// optionally remapped via the header_map option. Empty cells become nil.
//
// Options:
//   - comma: delimiter as a one-rune string (default ",")
//   - trim_space: trim cell edges (default true)
//   - lazy_quotes: tolerate bare quotes (default false)
//   - charset: "windows-1252" or "latin-1" to transcode before parsing
//   - header_map: original header → canonical name
//
// A record whose arity differs from the header aborts with a
// dataset.ParseError; arity mismatch is structural, not row-local.
func Read(r io.Reader, opt config.Options) (*dataset.Table, error) {
	rr, err := decodeCharset(r, opt.String("charset", ""))
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(rr)
	cr.Comma = opt.Rune("comma", ',')
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	cr.FieldsPerRecord = 0 // enforce header arity
	cr.ReuseRecord = true

	trim := opt.Bool("trim_space", true)
	hm := opt.StringMap("header_map")

	line := 1
	hdr, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, &dataset.ParseError{Line: 1, Err: errors.New("empty input, no header")}
		}
		return nil, &dataset.ParseError{Line: 1, Err: fmt.Errorf("read header: %w", err)}
	}

	columns := make([]string, len(hdr))
	for i, h := range hdr {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if mapped, ok := hm[h]; ok {
			h = mapped
		} else {
			h = strings.ReplaceAll(strings.ToLower(h), " ", "_")
		}
		columns[i] = h
	}

	t := dataset.New(columns)
	for {
		line++
		rec, err := cr.Read()
		if err == io.EOF {
			return t, nil
		}
		if err != nil {
			return nil, &dataset.ParseError{Line: line, Err: err}
		}

		row := dataset.Row{V: make([]any, len(columns)), Line: line}
		for i, v := range rec {
			if trim {
				v = strings.TrimSpace(v)
			}
			if v == "" {
				row.V[i] = nil
			} else {
				row.V[i] = v
			}
		}
		if err := t.Append(row); err != nil {
			return nil, err
		}
	}
}

// ReadFile opens path and delegates to Read. Access failures come back as
// dataset.IOError.
func ReadFile(path string, opt config.Options) (*dataset.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &dataset.IOError{Path: path, Err: err}
	}
	defer f.Close()

	t, err := Read(f, opt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func decodeCharset(r io.Reader, name string) (io.Reader, error) {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return r, nil
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	case "latin-1", "iso-8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", name)
	}
}
