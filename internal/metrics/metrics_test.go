package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingBackend struct {
	counters map[string]float64
	observed []float64
	flushed  int
	closed   int
}

func (r *recordingBackend) IncCounter(name string, v float64, _ []string) {
	if r.counters == nil {
		r.counters = map[string]float64{}
	}
	r.counters[name] += v
}
func (r *recordingBackend) ObserveHistogram(_ string, v float64, _ []string) {
	r.observed = append(r.observed, v)
}
func (r *recordingBackend) Flush() error { r.flushed++; return nil }
func (r *recordingBackend) Close() error { r.closed++; return nil }

func TestPackageHelpersRouteToBackend(t *testing.T) {
	rec := &recordingBackend{}
	SetBackend(rec)
	defer SetBackend(nil)

	IncCounter(RowsLoaded, 10)
	IncCounter(RowsLoaded, 5, "source:csv")
	ObserveHistogram(StageSeconds, 0.25, "stage:normalize")
	assert.NoError(t, Flush())
	assert.NoError(t, Close())

	assert.Equal(t, 15.0, rec.counters[RowsLoaded])
	assert.Equal(t, []float64{0.25}, rec.observed)
	assert.Equal(t, 1, rec.flushed)
	assert.Equal(t, 1, rec.closed)
}

func TestNopBackendByDefault(t *testing.T) {
	SetBackend(nil)
	IncCounter(RowsLoaded, 1)
	assert.NoError(t, Flush())
	assert.NoError(t, Close())
}
