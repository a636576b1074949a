package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
	"strconv"
	"time"
)

const namespace = "orderstatus"

// Metrics implements orders.Recorder, ratelimit.Rejections and audit.Failures.
type Metrics struct {
	Transitions *prometheus.CounterVec
	Rejections  prometheus.Counter
	SideEffects *prometheus.CounterVec
	Requests    *prometheus.CounterVec
	LatencyMS   *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Order status update attempts by outcome.",
		}, []string{"outcome"}),
		Rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests refused by the rate limiter.",
		}),
		SideEffects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_failures_total",
			Help:      "Swallowed audit and notification failures.",
		}, []string{"kind"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		gatherer: reg,
	}
	reg.MustRegister(m.Transitions, m.Rejections, m.SideEffects, m.Requests, m.LatencyMS)
	return m
}

func (m *Metrics) Transition(outcome string) { m.Transitions.WithLabelValues(outcome).Inc() }

func (m *Metrics) RateLimited() { m.Rejections.Inc() }

func (m *Metrics) SideEffectFailed(kind string) { m.SideEffects.WithLabelValues(kind).Inc() }

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(handler string, status int, elapsed time.Duration) {
	m.Requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(float64(elapsed.Milliseconds()))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
