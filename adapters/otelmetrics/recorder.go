// Package otelmetrics implements core.MetricsRecorder on an OpenTelemetry
// meter. Instruments are created on first use and cached by name.
package otelmetrics

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-contracts/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/goliatone/go-contracts"

type Recorder struct {
	meter   metric.Meter
	onError func(name string, err error)

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

type Option func(*Recorder)

// WithErrorHandler is called when an instrument cannot be created. The
// measurement is dropped either way.
func WithErrorHandler(handler func(name string, err error)) Option {
	return func(r *Recorder) {
		r.onError = handler
	}
}

// New records on meter, or on the global meter provider when meter is nil.
func New(meter metric.Meter, opts ...Option) *Recorder {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	r := &Recorder{
		meter:      meter,
		counters:   map[string]metric.Int64Counter{},
		histograms: map[string]metric.Float64Histogram{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Recorder) IncCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	counter, ok := r.counter(name)
	if !ok {
		return
	}
	counter.Add(ctx, value, metric.WithAttributes(attributes(tags)...))
}

func (r *Recorder) ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	histogram, ok := r.histogram(name)
	if !ok {
		return
	}
	histogram.Record(ctx, value, metric.WithAttributes(attributes(tags)...))
}

func (r *Recorder) counter(name string) (metric.Int64Counter, bool) {
	name = strings.TrimSpace(name)
	if r == nil || name == "" {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if counter, ok := r.counters[name]; ok {
		return counter, true
	}
	counter, err := r.meter.Int64Counter(name)
	if err != nil {
		r.fail(name, err)
		return nil, false
	}
	r.counters[name] = counter
	return counter, true
}

func (r *Recorder) histogram(name string) (metric.Float64Histogram, bool) {
	name = strings.TrimSpace(name)
	if r == nil || name == "" {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if histogram, ok := r.histograms[name]; ok {
		return histogram, true
	}
	opts := []metric.Float64HistogramOption{}
	if strings.HasSuffix(name, "_ms") {
		opts = append(opts, metric.WithUnit("ms"))
	}
	histogram, err := r.meter.Float64Histogram(name, opts...)
	if err != nil {
		r.fail(name, err)
		return nil, false
	}
	r.histograms[name] = histogram
	return histogram, true
}

func (r *Recorder) fail(name string, err error) {
	if r.onError != nil {
		r.onError(name, err)
	}
}

func attributes(tags map[string]string) []attribute.KeyValue {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for key := range tags {
		if strings.TrimSpace(key) != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := make([]attribute.KeyValue, 0, len(keys))
	for _, key := range keys {
		out = append(out, attribute.String(strings.TrimSpace(key), tags[key]))
	}
	return out
}

var _ core.MetricsRecorder = (*Recorder)(nil)
