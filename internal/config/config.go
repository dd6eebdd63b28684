// Package config defines the JSON pipeline configuration for the
// purchase-report run: input location and CSV options, normalization rules,
// store-type decomposition, the report set, and optional storage/metrics
// sinks.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Pipeline is the top-level run configuration.
type Pipeline struct {
	Job       string    `json:"job"`
	Input     Input     `json:"input"`
	Normalize Normalize `json:"normalize"`
	StoreType StoreType `json:"store_type"`
	Reports   []Report  `json:"reports"`
	Storage   *Storage  `json:"storage,omitempty"`
}

type Input struct {
	Path    string  `json:"path"`
	Options Options `json:"options,omitempty"`
}

type Normalize struct {
	DateLayout   string   `json:"date_layout"`
	DateFields   []string `json:"date_fields"`
	DeviceField  string   `json:"device_field"`
	WeekdayField string   `json:"weekday_field"`
	MoneyFields  []string `json:"money_fields"`
	IntFields    []string `json:"int_fields"`
	BoolFields   []string `json:"bool_fields"`
	Delay        Delay    `json:"delay"`
}

// Delay derives days-to-first-purchase and its bucket label from two
// timestamp columns.
type Delay struct {
	SignupField   string `json:"signup_field"`
	PurchaseField string `json:"purchase_field"`
	DaysField     string `json:"days_field"`
	BucketField   string `json:"bucket_field"`
}

type StoreType struct {
	Field string `json:"field"`
	// Discovery selects how the canonical column set is found:
	// "first_row" (default) uses the first non-empty payload,
	// "scan_all" unions keys across the whole table.
	Discovery string `json:"discovery,omitempty"`
	// ReportTitle names the synthesized per-store-type purchase table.
	// The table is always emitted when the payload yields any columns;
	// empty means "Purchases per store type".
	ReportTitle string `json:"report_title,omitempty"`
}

type Report struct {
	Title    string    `json:"title"`
	GroupBy  string    `json:"group_by"`
	Measures []Measure `json:"measures"`
	SortBy   string    `json:"sort_by,omitempty"`
	Filter   *Filter   `json:"filter,omitempty"`
}

type Measure struct {
	Kind        string `json:"kind"` // count | sum | mean | weighted_mean
	Field       string `json:"field,omitempty"`
	WeightField string `json:"weight_field,omitempty"`
	Name        string `json:"name"`
}

// Filter is a pre-aggregation equality predicate. Cell values are compared
// by their canonical string form.
type Filter struct {
	Field  string `json:"field"`
	Equals string `json:"equals"`
}

type Storage struct {
	Kind string `json:"kind"` // sqlite | postgres | mssql
	DSN  string `json:"dsn"`
}

// Load reads and decodes a pipeline config file.
func Load(path string) (Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) (Pipeline, error) {
	var p Pipeline
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("decode config: %w", err)
	}
	return p, nil
}

// Severity levels for validation issues.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

type Issue struct {
	Severity string
	Path     string
	Message  string
}

// Validate checks the parts of the config the pipeline cannot default its
// way around. Warnings do not block a run.
func Validate(p Pipeline) []Issue {
	var issues []Issue

	errf := func(path, format string, args ...any) {
		issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)})
	}
	warnf := func(path, format string, args ...any) {
		issues = append(issues, Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if p.Input.Path == "" {
		errf("input.path", "input path is required")
	}
	if p.Normalize.DateLayout == "" && len(p.Normalize.DateFields) > 0 {
		errf("normalize.date_layout", "date_layout is required when date_fields are set")
	}
	switch p.StoreType.Discovery {
	case "", "first_row", "scan_all":
	default:
		errf("store_type.discovery", "unknown discovery mode %q", p.StoreType.Discovery)
	}
	if len(p.Reports) == 0 {
		warnf("reports", "no reports configured; run will only normalize and decompose")
	}
	for i, r := range p.Reports {
		path := fmt.Sprintf("reports[%d]", i)
		if r.GroupBy == "" {
			errf(path+".group_by", "group_by is required")
		}
		if len(r.Measures) == 0 {
			errf(path+".measures", "at least one measure is required")
		}
		for j, m := range r.Measures {
			mpath := fmt.Sprintf("%s.measures[%d]", path, j)
			switch m.Kind {
			case "count":
			case "sum", "mean":
				if m.Field == "" {
					errf(mpath+".field", "%s requires a field", m.Kind)
				}
			case "weighted_mean":
				if m.Field == "" || m.WeightField == "" {
					errf(mpath, "weighted_mean requires field and weight_field")
				}
			default:
				errf(mpath+".kind", "unknown measure kind %q", m.Kind)
			}
			if m.Name == "" {
				errf(mpath+".name", "measure name is required")
			}
		}
	}
	if p.Storage != nil {
		switch p.Storage.Kind {
		case "sqlite", "postgres", "mssql":
			if p.Storage.DSN == "" {
				errf("storage.dsn", "dsn is required for %s", p.Storage.Kind)
			}
		default:
			errf("storage.kind", "unknown storage kind %q", p.Storage.Kind)
		}
	}
	return issues
}
