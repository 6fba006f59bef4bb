// Package telemetry is the pipeline's single observability surface:
// per-query store latency, per-topic fact-cache hit/miss counters, mining
// duration histograms, and a heater progress gauge. Adapted from the
// teacher's internal/telemetry/telemetry.go (OpenTelemetry tracer/meter
// bootstrap) and internal/metrics/tracker.go (the "counters per request"
// idiom), narrowed to the instruments this pipeline actually emits.
package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles the tracer used for request-scoped spans and the
// Prometheus registry backing the pipeline's counters/histograms.
type Telemetry struct {
	tracer   trace.Tracer
	Registry *prometheus.Registry

	StoreLatency   *prometheus.HistogramVec // labels: store, op
	CacheHits      *prometheus.CounterVec   // labels: topic
	CacheMisses    *prometheus.CounterVec   // labels: topic
	MiningDuration *prometheus.HistogramVec // labels: family
	HeaterAccounts prometheus.Gauge         // accounts warmed in the current run
	HeaterFailures *prometheus.CounterVec   // labels: account
}

// Config configures the service name reported on spans.
type Config struct {
	ServiceName    string
	ServiceVersion string
}

// New builds a Telemetry instance with a fresh Prometheus registry and a
// no-exporter tracer provider suitable for embedding into the heater's
// admin listener or unit tests. Wiring a real OTLP/Jaeger exporter is a
// config-time decision left to cmd/heater.
func New(cfg Config) *Telemetry {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "prodflow"
	}
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	reg := prometheus.NewRegistry()

	t := &Telemetry{
		tracer:   tp.Tracer(cfg.ServiceName),
		Registry: reg,
		StoreLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storage_query_duration_seconds",
			Help:    "Latency of a single call to a logical store.",
			Buckets: prometheus.DefBuckets,
		}, []string{"store", "op"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "factcache_hits_total",
			Help: "Fact cache hits, per topic.",
		}, []string{"topic"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "factcache_misses_total",
			Help: "Fact cache misses, per topic.",
		}, []string{"topic"}),
		MiningDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mining_duration_seconds",
			Help:    "Duration of a single mining pass, per metric family.",
			Buckets: prometheus.DefBuckets,
		}, []string{"family"}),
		HeaterAccounts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "heater_accounts_warmed_total",
			Help: "Accounts successfully warmed in the current heater run.",
		}),
		HeaterFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heater_account_failures_total",
			Help: "Per-account heater failures, never blocking other accounts.",
		}, []string{"account"}),
	}

	reg.MustRegister(t.StoreLatency, t.CacheHits, t.CacheMisses, t.MiningDuration, t.HeaterAccounts, t.HeaterFailures)
	return t
}

// StartSpan starts a request-scoped span, e.g. one per metric family fan-out.
func (t *Telemetry) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name)
}

// EndSpan records err (if any) on the span before ending it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// RecordHit increments the per-topic cache hit counter, attaching the topic
// to the current span when one is active.
func (t *Telemetry) RecordHit(ctx context.Context, topic string) {
	t.CacheHits.WithLabelValues(topic).Inc()
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("factcache.topic", topic))
}

// RecordMiss increments the per-topic cache miss counter.
func (t *Telemetry) RecordMiss(ctx context.Context, topic string) {
	t.CacheMisses.WithLabelValues(topic).Inc()
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("factcache.topic", topic))
}

// Counters is the hit/miss snapshot for a single request, returned to
// callers alongside the planner's result so observability survives a
// partial failure (spec's "preserve partial observability in headers").
type Counters struct {
	Hits   map[string]int64
	Misses map[string]int64
}

// NewCounters builds an empty per-request counter set.
func NewCounters() *Counters {
	return &Counters{Hits: make(map[string]int64), Misses: make(map[string]int64)}
}

// Hit records a hit for topic in both the per-request snapshot and the
// global Prometheus counter.
func (c *Counters) Hit(ctx context.Context, t *Telemetry, topic string) {
	c.Hits[topic]++
	if t != nil {
		t.RecordHit(ctx, topic)
	}
}

// Miss records a miss for topic in both the per-request snapshot and the
// global Prometheus counter.
func (c *Counters) Miss(ctx context.Context, t *Telemetry, topic string) {
	c.Misses[topic]++
	if t != nil {
		t.RecordMiss(ctx, topic)
	}
}

func (c *Counters) String() string {
	return fmt.Sprintf("hits=%v misses=%v", c.Hits, c.Misses)
}
