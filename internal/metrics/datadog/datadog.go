// Package datadog implements a Datadog backend for internal/metrics.
//
// Points are buffered in memory and submitted in batches: a ticker flushes
// periodically during long runs, and Close() performs one final flush so
// short one-shot reporting runs still land a complete series.
//
// Concurrency model:
//   - pipeline code calls IncCounter/ObserveHistogram at any time
//   - Flush snapshots+resets buffers under a mutex, then submits out-of-lock
//   - the flush loop calls Flush() periodically; Close() stops the loop
package datadog

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options controls backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric.
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod"}).
	Tags []string

	// FlushEvery controls the periodic submit. <= 0 defaults to 60s.
	FlushEvery time.Duration

	// Unexported test seams; production never sets them.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal slice of the Datadog SDK the backend
// needs; tests stub it to avoid real HTTP.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api      metricsSubmitter
	ctx      context.Context
	baseTags []string

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu       sync.Mutex
	counters map[seriesKey]float64
	samples  map[seriesKey][]float64
}

type seriesKey struct {
	name string
	tags string // sorted, comma-joined
}

// NewBackend constructs a Datadog backend using the official client and
// starts the flush loop. Credentials come from the standard DD_* variables
// via the SDK's default context.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "purchase_report"
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}
	submitter := opts.submitter
	if submitter == nil {
		client := dd.NewAPIClient(dd.NewConfiguration())
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		baseTags:   append([]string{"job:" + job}, opts.Tags...),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		now:        nowFn,
		newTicker:  newTicker,
		counters:   map[seriesKey]float64{},
		samples:    map[seriesKey][]float64{},
	}
	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)
	t := b.newTicker(b.flushEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, tags []string) {
	if delta <= 0 {
		return
	}
	k := key(name, tags)
	b.mu.Lock()
	b.counters[k] += delta
	b.mu.Unlock()
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, tags []string) {
	if value < 0 {
		return
	}
	k := key(name, tags)
	b.mu.Lock()
	b.samples[k] = append(b.samples[k], value)
	b.mu.Unlock()
}

// Flush submits buffered metrics and resets the buffers. Buffers reset even
// when submission fails so a dead intake never blocks the pipeline.
func (b *Backend) Flush() error {
	b.mu.Lock()
	counters := b.counters
	samples := b.samples
	b.counters = map[seriesKey]float64{}
	b.samples = map[seriesKey][]float64{}
	b.mu.Unlock()

	if len(counters) == 0 && len(samples) == 0 {
		return nil
	}

	series := b.buildSeries(counters, samples, b.now().Unix())
	_, _, err := b.api.SubmitMetrics(b.ctx, datadogV2.MetricPayload{Series: series}, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// Close stops the flush loop and submits one final time. Call once.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// buildSeries is pure (no locks, clocks, or network), which keeps the
// naming/tagging contract unit-testable.
func (b *Backend) buildSeries(counters map[seriesKey]float64, samples map[seriesKey][]float64, nowUnix int64) []datadogV2.MetricSeries {
	point := func(v float64) []datadogV2.MetricPoint {
		return []datadogV2.MetricPoint{{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(v)}}
	}
	gauge := func(name string, v float64, tags []string) datadogV2.MetricSeries {
		return datadogV2.MetricSeries{
			Metric: name,
			Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
			Points: point(v),
			Tags:   tags,
		}
	}

	series := make([]datadogV2.MetricSeries, 0, len(counters)+len(samples)*4)
	for k, v := range counters {
		series = append(series, datadogV2.MetricSeries{
			Metric: k.name,
			Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
			Points: point(v),
			Tags:   b.seriesTags(k),
		})
	}
	for k, vals := range samples {
		cp := append([]float64(nil), vals...)
		sort.Float64s(cp)
		tags := b.seriesTags(k)
		series = append(series,
			gauge(k.name+".p50", percentileNearestRank(cp, 0.50), tags),
			gauge(k.name+".p95", percentileNearestRank(cp, 0.95), tags),
			gauge(k.name+".max", cp[len(cp)-1], tags),
			gauge(k.name+".samples", float64(len(cp)), tags),
		)
	}
	return series
}

func (b *Backend) seriesTags(k seriesKey) []string {
	tags := append([]string(nil), b.baseTags...)
	if k.tags != "" {
		tags = append(tags, strings.Split(k.tags, ",")...)
	}
	return tags
}

func key(name string, tags []string) seriesKey {
	if len(tags) == 0 {
		return seriesKey{name: name}
	}
	cp := append([]string(nil), tags...)
	sort.Strings(cp)
	return seriesKey{name: name, tags: strings.Join(cp, ",")}
}

// percentileNearestRank picks the nearest-rank percentile from sorted
// samples.
func percentileNearestRank(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(p*float64(len(sorted)) + 0.5)
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
