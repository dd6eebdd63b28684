// Package prompush implements a Prometheus Pushgateway backend for
// internal/metrics. One-shot batch runs cannot be scraped, so the run pushes
// its final counters to the gateway instead.
package prompush

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend implements metrics.Backend by buffering points and pushing them
// as const metrics on Flush.
type Backend struct {
	job    string
	pusher *push.Pusher

	mu       sync.Mutex
	counters map[string]*point
	samples  map[string]*sampleSet
}

type point struct {
	name  string
	tags  []string
	value float64
}

type sampleSet struct {
	name   string
	tags   []string
	values []float64
}

// NewBackend builds a backend pushing to the gateway at url under job.
func NewBackend(job, url string) (*Backend, error) {
	if job == "" || url == "" {
		return nil, fmt.Errorf("prompush: job and url are required")
	}
	return &Backend{
		job:      job,
		pusher:   push.New(url, job),
		counters: map[string]*point{},
		samples:  map[string]*sampleSet{},
	}, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, tags []string) {
	if delta <= 0 {
		return
	}
	k := bufferKey(name, tags)
	b.mu.Lock()
	p, ok := b.counters[k]
	if !ok {
		p = &point{name: name, tags: append([]string(nil), tags...)}
		b.counters[k] = p
	}
	p.value += delta
	b.mu.Unlock()
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, tags []string) {
	if value < 0 {
		return
	}
	k := bufferKey(name, tags)
	b.mu.Lock()
	s, ok := b.samples[k]
	if !ok {
		s = &sampleSet{name: name, tags: append([]string(nil), tags...)}
		b.samples[k] = s
	}
	s.values = append(s.values, value)
	b.mu.Unlock()
}

// Flush pushes buffered metrics to the gateway. The buffers reset on every
// push; the gateway keeps the last pushed value per series.
func (b *Backend) Flush() error {
	b.mu.Lock()
	counters := b.counters
	samples := b.samples
	b.counters = map[string]*point{}
	b.samples = map[string]*sampleSet{}
	b.mu.Unlock()

	if len(counters) == 0 && len(samples) == 0 {
		return nil
	}

	var metrics []prometheus.Metric
	for _, p := range counters {
		m, err := constMetric(p.name, "", prometheus.CounterValue, p.value, p.tags)
		if err != nil {
			return err
		}
		metrics = append(metrics, m)
	}
	for _, s := range samples {
		sorted := append([]float64(nil), s.values...)
		sort.Float64s(sorted)
		for suffix, v := range map[string]float64{
			"_max":     sorted[len(sorted)-1],
			"_samples": float64(len(sorted)),
		} {
			m, err := constMetric(s.name, suffix, prometheus.GaugeValue, v, s.tags)
			if err != nil {
				return err
			}
			metrics = append(metrics, m)
		}
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(&constCollector{metrics: metrics}); err != nil {
		return err
	}
	return b.pusher.Gatherer(reg).Add()
}

// Close pushes one final time.
func (b *Backend) Close() error { return b.Flush() }

// constCollector is an unchecked collector over pre-built const metrics.
type constCollector struct {
	metrics []prometheus.Metric
}

func (c *constCollector) Describe(chan<- *prometheus.Desc) {}
func (c *constCollector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range c.metrics {
		ch <- m
	}
}

func constMetric(name, suffix string, kind prometheus.ValueType, value float64, tags []string) (prometheus.Metric, error) {
	labelNames, labelValues := splitTags(tags)
	desc := prometheus.NewDesc(PromName(name)+suffix, "", labelNames, nil)
	return prometheus.NewConstMetric(desc, kind, value, labelValues...)
}

// splitTags converts "key:value" tags into parallel label name/value slices,
// sorted by name for a stable series identity.
func splitTags(tags []string) ([]string, []string) {
	cp := append([]string(nil), tags...)
	sort.Strings(cp)
	names := make([]string, 0, len(cp))
	values := make([]string, 0, len(cp))
	for _, t := range cp {
		k, v, ok := strings.Cut(t, ":")
		if !ok || k == "" {
			continue
		}
		names = append(names, PromName(k))
		values = append(values, v)
	}
	return names, values
}

// PromName maps a dotted metric name onto the Prometheus charset.
func PromName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func bufferKey(name string, tags []string) string {
	cp := append([]string(nil), tags...)
	sort.Strings(cp)
	return name + "|" + strings.Join(cp, ",")
}
