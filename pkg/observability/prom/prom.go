// Package prom implements the observability hooks with Prometheus metrics.
package prom

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/observability"
)

const namespace = "flowlines"

// Hooks records scheduler, pipeline, cache and HTTP events as metrics.
type Hooks struct {
	triggers      *prometheus.CounterVec
	computations  *prometheus.HistogramVec
	publishes     *prometheus.CounterVec
	lastSeq       prometheus.Gauge
	stageDuration *prometheus.HistogramVec
	cacheOps      *prometheus.CounterVec
	cacheBytes    *prometheus.CounterVec
	requests      *prometheus.CounterVec
	reqDuration   *prometheus.HistogramVec
}

var (
	_ observability.SchedulerHooks = (*Hooks)(nil)
	_ observability.PipelineHooks  = (*Hooks)(nil)
	_ observability.CacheHooks     = (*Hooks)(nil)
	_ observability.HTTPHooks      = (*Hooks)(nil)
)

// New creates the metrics and registers them with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Hooks {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	h := &Hooks{
		triggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "triggers_total",
				Help:      "Recompute triggers by source and whether they were coalesced.",
			},
			[]string{"source", "coalesced"},
		),
		computations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "computation_duration_seconds",
				Help:      "Duration of geometry computation passes by outcome.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"outcome", "code"},
		),
		publishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshots_published_total",
				Help:      "Published geometry snapshots.",
			},
			[]string{"failed"},
		),
		lastSeq: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_sequence",
			Help:      "Sequence number of the latest published snapshot.",
		}),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_stage_duration_seconds",
				Help:      "Duration of pipeline stages.",
			},
			[]string{"stage", "status"},
		),
		cacheOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_operations_total",
				Help:      "Cache lookups and writes by key type.",
			},
			[]string{"key_type", "op"},
		),
		cacheBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_written_bytes_total",
				Help:      "Bytes written to the cache by key type.",
			},
			[]string{"key_type"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Served HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		reqDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of served HTTP requests.",
			},
			[]string{"method", "route"},
		),
	}
	reg.MustRegister(
		h.triggers, h.computations, h.publishes, h.lastSeq, h.stageDuration,
		h.cacheOps, h.cacheBytes, h.requests, h.reqDuration,
	)
	return h
}

// Install registers h with the global observability registry.
func (h *Hooks) Install() {
	observability.SetSchedulerHooks(h)
	observability.SetPipelineHooks(h)
	observability.SetCacheHooks(h)
	observability.SetHTTPHooks(h)
}

func (h *Hooks) OnTrigger(_ context.Context, source string, coalesced bool) {
	h.triggers.WithLabelValues(source, strconv.FormatBool(coalesced)).Inc()
}

func (h *Hooks) OnCompute(_ context.Context, outcome string, d time.Duration, err error) {
	h.computations.WithLabelValues(outcome, string(errors.GetCode(err))).Observe(d.Seconds())
}

func (h *Hooks) OnPublish(_ context.Context, seq uint64, failed bool) {
	h.publishes.WithLabelValues(strconv.FormatBool(failed)).Inc()
	h.lastSeq.Set(float64(seq))
}

func (h *Hooks) OnComputeStart(context.Context, int) {}

func (h *Hooks) OnComputeComplete(_ context.Context, d time.Duration, err error) {
	h.stageDuration.WithLabelValues("compute", status(err)).Observe(d.Seconds())
}

func (h *Hooks) OnRenderStart(context.Context, []string) {}

func (h *Hooks) OnRenderComplete(_ context.Context, _ []string, d time.Duration, err error) {
	h.stageDuration.WithLabelValues("render", status(err)).Observe(d.Seconds())
}

func (h *Hooks) OnCacheHit(_ context.Context, keyType string) {
	h.cacheOps.WithLabelValues(keyType, "hit").Inc()
}

func (h *Hooks) OnCacheMiss(_ context.Context, keyType string) {
	h.cacheOps.WithLabelValues(keyType, "miss").Inc()
}

func (h *Hooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.cacheOps.WithLabelValues(keyType, "set").Inc()
	h.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (h *Hooks) OnRequest(context.Context, string, string) {}

func (h *Hooks) OnResponse(_ context.Context, method, route string, code int, d time.Duration) {
	h.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	h.reqDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
