package datadog

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
}

func (f *fakeSubmitter) SubmitMetrics(_ context.Context, body datadogV2.MetricPayload, _ ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, nil
}

func newTestBackend(t *testing.T) (*Backend, *fakeSubmitter) {
	t.Helper()
	sub := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), Options{
		JobName:    "test_job",
		FlushEvery: time.Hour, // never ticks during the test
		now:        func() time.Time { return time.Unix(1700000000, 0) },
		submitter:  sub,
	})
	require.NoError(t, err)
	return b, sub
}

func TestBackend_CountersAggregateUntilFlush(t *testing.T) {
	b, sub := newTestBackend(t)

	b.IncCounter("purchase_report.rows_loaded", 2, []string{"source:csv"})
	b.IncCounter("purchase_report.rows_loaded", 3, []string{"source:csv"})
	b.IncCounter("purchase_report.rows_loaded", -1, []string{"source:csv"}) // ignored

	require.NoError(t, b.Close())
	require.Len(t, sub.payloads, 1)

	series := sub.payloads[0].Series
	require.Len(t, series, 1)
	assert.Equal(t, "purchase_report.rows_loaded", series[0].Metric)
	assert.Equal(t, 5.0, *series[0].Points[0].Value)
	assert.Contains(t, series[0].Tags, "job:test_job")
	assert.Contains(t, series[0].Tags, "source:csv")
	assert.Equal(t, int64(1700000000), *series[0].Points[0].Timestamp)
}

func TestBackend_HistogramPercentiles(t *testing.T) {
	b, sub := newTestBackend(t)

	for _, v := range []float64{0.1, 0.2, 0.3, 0.4} {
		b.ObserveHistogram("purchase_report.stage_seconds", v, nil)
	}
	require.NoError(t, b.Close())

	byName := map[string]float64{}
	for _, s := range sub.payloads[0].Series {
		byName[s.Metric] = *s.Points[0].Value
	}
	assert.Equal(t, 0.2, byName["purchase_report.stage_seconds.p50"])
	assert.Equal(t, 0.4, byName["purchase_report.stage_seconds.max"])
	assert.Equal(t, 4.0, byName["purchase_report.stage_seconds.samples"])
}

func TestBackend_EmptyFlushSubmitsNothing(t *testing.T) {
	b, sub := newTestBackend(t)
	require.NoError(t, b.Flush())
	require.NoError(t, b.Close())
	assert.Empty(t, sub.payloads)
}
