package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjannette/gold-monitor-backend/internal/models"
)

const namespace = "gold_monitor"

// Metrics holds the service collectors on a private registry so tests
// can build as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge
	rateLimited          prometheus.Counter
	observations         *prometheus.CounterVec
	lastPrice            prometheus.Gauge
	scheduledSamples     *prometheus.CounterVec
	alertsFired          *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		rateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
		),
		observations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "price_observations_total",
				Help:      "Price observations produced, by source",
			},
			[]string{"source"},
		),
		lastPrice: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_price_usd",
				Help:      "Most recent sampled gold price",
			},
		),
		scheduledSamples: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduled_samples_total",
				Help:      "Scheduler ticks, by outcome",
			},
			[]string{"outcome"},
		),
		alertsFired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_fired_total",
				Help:      "Price alerts raised, by rule",
			},
			[]string{"rule"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpRequestsInFlight,
		m.rateLimited,
		m.observations,
		m.lastPrice,
		m.scheduledSamples,
		m.alertsFired,
	)
	return m
}

// Handler serves the exposition format for this registry only.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePrice records a sampled observation. It has the sampler hook
// signature.
func (m *Metrics) ObservePrice(obs models.PriceObservation) {
	m.observations.WithLabelValues(obs.Source).Inc()
	m.lastPrice.Set(obs.Price)
}

func (m *Metrics) ScheduledSample(outcome string) {
	m.scheduledSamples.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AlertFired(rule string) {
	m.alertsFired.WithLabelValues(rule).Inc()
}

func (m *Metrics) RateLimited() {
	m.rateLimited.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records count, latency and in-flight requests. endpoint is
// the matched ServeMux pattern so path values do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}
