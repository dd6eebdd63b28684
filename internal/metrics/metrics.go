// Package metrics is the thin seam between the pipeline and whichever
// metrics backend a run configures. Pipeline code calls the package-level
// helpers; mains pick a backend (datadog, pushgateway) or leave the nop
// default. Stage code never imports a vendor SDK.
package metrics

import "sync"

// Backend receives metric points. Implementations buffer internally and
// submit on Flush/Close.
type Backend interface {
	IncCounter(name string, value float64, tags []string)
	ObserveHistogram(name string, value float64, tags []string)
	Flush() error
	Close() error
}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b for the rest of the run. Passing nil restores the
// nop backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds value to a counter.
func IncCounter(name string, value float64, tags ...string) {
	current().IncCounter(name, value, tags)
}

// ObserveHistogram records one observation of a distribution.
func ObserveHistogram(name string, value float64, tags ...string) {
	current().ObserveHistogram(name, value, tags)
}

// Flush submits buffered points.
func Flush() error { return current().Flush() }

// Close flushes and releases the backend.
func Close() error { return current().Close() }

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, []string)       {}
func (nopBackend) ObserveHistogram(string, float64, []string) {}
func (nopBackend) Flush() error                               { return nil }
func (nopBackend) Close() error                               { return nil }

// Metric names emitted by the pipeline.
const (
	RowsLoaded     = "purchase_report.rows_loaded"
	RowsNormalized = "purchase_report.rows_normalized"
	CoerceWarnings = "purchase_report.coerce_warnings"
	StoreTypeCols  = "purchase_report.store_type_columns"
	ReportsWritten = "purchase_report.reports_written"
	StageSeconds   = "purchase_report.stage_seconds"
)
