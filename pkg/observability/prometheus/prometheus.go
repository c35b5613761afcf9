// Package prometheus implements the observability hooks on top of
// prometheus/client_golang.
package prometheus

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/jarprobe/pkg/observability"
)

const namespace = "jarprobe"

// Hooks implements all three hook families and records them as metrics.
type Hooks struct {
	strategies  *prometheus.HistogramVec
	settled     *prometheus.CounterVec
	escalations *prometheus.CounterVec

	cacheLookups *prometheus.CounterVec
	cacheWrites  *prometheus.CounterVec

	requests  *prometheus.HistogramVec
	httpError *prometheus.CounterVec
	probes    *prometheus.CounterVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) (*Hooks, error) {
	h := &Hooks{
		strategies: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "strategy_duration_seconds",
			Help:      "Duration of resolution strategy attempts.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy", "matched"}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "settled_total",
			Help:      "Records settled by disposition.",
		}, []string{"disposition"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "escalation_commands_total",
			Help:      "Commands answered at the escalation prompt.",
		}, []string{"command"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Verification cache lookups by result.",
		}, []string{"backend", "result"}),
		cacheWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "writes_total",
			Help:      "Verification cache writes; stored=false means another writer won.",
		}, []string{"backend", "stored"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "egress",
			Name:      "request_duration_seconds",
			Help:      "Duration of outgoing HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host", "code"}),
		httpError: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "egress",
			Name:      "errors_total",
			Help:      "Outgoing requests that failed below HTTP.",
		}, []string{"host"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "egress",
			Name:      "probes_total",
			Help:      "Liveness probes by endpoint and result.",
		}, []string{"endpoint", "live"}),
	}

	for _, c := range []prometheus.Collector{
		h.strategies, h.settled, h.escalations,
		h.cacheLookups, h.cacheWrites,
		h.requests, h.httpError, h.probes,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Install registers h as the global pipeline, cache and HTTP hooks.
func (h *Hooks) Install() {
	observability.SetPipelineHooks(h)
	observability.SetCacheHooks(h)
	observability.SetHTTPHooks(h)
}

func (h *Hooks) OnStrategy(_ context.Context, strategy string, matched bool, d time.Duration) {
	h.strategies.WithLabelValues(strategy, strconv.FormatBool(matched)).Observe(d.Seconds())
}

func (h *Hooks) OnSettle(_ context.Context, disposition string) {
	h.settled.WithLabelValues(disposition).Inc()
}

func (h *Hooks) OnEscalation(_ context.Context, command string) {
	h.escalations.WithLabelValues(command).Inc()
}

func (h *Hooks) OnCacheHit(_ context.Context, backend string) {
	h.cacheLookups.WithLabelValues(backend, "hit").Inc()
}

func (h *Hooks) OnCacheMiss(_ context.Context, backend string) {
	h.cacheLookups.WithLabelValues(backend, "miss").Inc()
}

func (h *Hooks) OnCacheSet(_ context.Context, backend string, stored bool) {
	h.cacheWrites.WithLabelValues(backend, strconv.FormatBool(stored)).Inc()
}

func (h *Hooks) OnRequest(context.Context, string, string, string) {}

func (h *Hooks) OnResponse(_ context.Context, _, host, _ string, code int, d time.Duration) {
	h.requests.WithLabelValues(host, strconv.Itoa(code)).Observe(d.Seconds())
}

func (h *Hooks) OnError(_ context.Context, _, host, _ string, _ error) {
	h.httpError.WithLabelValues(host).Inc()
}

func (h *Hooks) OnProbe(_ context.Context, endpoint, _ string, live bool) {
	h.probes.WithLabelValues(endpoint, strconv.FormatBool(live)).Inc()
}

var (
	_ observability.PipelineHooks = (*Hooks)(nil)
	_ observability.CacheHooks    = (*Hooks)(nil)
	_ observability.HTTPHooks     = (*Hooks)(nil)
)
