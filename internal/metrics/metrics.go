package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Metrics owns the gateway's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	gateDecisions   *prometheus.CounterVec
	forcedLogouts   prometheus.Counter
	logins          *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_gate_decisions_total",
			Help: "Auth gate decisions by outcome and required role.",
		}, []string{"decision", "role"}),
		forcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_forced_logouts_total",
			Help: "Sessions cleared after a not-found timeout.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
	m.registry.MustRegister(
		m.gateDecisions,
		m.forcedLogouts,
		m.logins,
		m.requestsTotal,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) GateDecision(decision, role string) {
	if m == nil {
		return
	}
	if role == "" {
		role = "any"
	}
	m.gateDecisions.WithLabelValues(decision, role).Inc()
}

func (m *Metrics) ForcedLogout() {
	if m == nil {
		return
	}
	m.forcedLogouts.Inc()
}

func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// Instrument records request counts and latency. Paths are not labelled to keep
// cardinality bounded under unknown-route probing.
func (m *Metrics) Instrument(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	if m == nil {
		return next
	}
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		method := string(ctx.Method())
		status := strconv.Itoa(ctx.Response.StatusCode())
		m.requestDuration.WithLabelValues(method, status).Observe(time.Since(start).Seconds())
		m.requestsTotal.WithLabelValues(method, status).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
