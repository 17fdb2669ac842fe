package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	embeds          *prometheus.CounterVec
	compares        *prometheus.CounterVec
	encoderDuration prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	distances       *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "facequant_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "facequant_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
		embeds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "facequant_embed_total",
				Help: "Embed pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		compares: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "facequant_compare_total",
				Help: "Comparisons by representation and decision",
			},
			[]string{"representation", "match"},
		),
		encoderDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "facequant_encoder_duration_seconds",
				Help:    "Face encoder call latency",
				Buckets: prometheus.DefBuckets,
			},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "facequant_cache_lookups_total",
				Help: "Embedding cache lookups by result",
			},
			[]string{"result"},
		),
		distances: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "facequant_compare_distance",
				Help:    "Distribution of comparison distances",
				Buckets: []float64{0.5, 1, 2, 3, 5, 7, 10, 15, 25, 50, 100},
			},
			[]string{"representation"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.requests, m.requestDuration, m.embeds, m.compares,
			m.encoderDuration, m.cacheLookups, m.distances)
	}
	return m
}

// Noop returns collectors that are not registered anywhere.
func Noop() *Metrics {
	return New(nil)
}

func (m *Metrics) ObserveRequest(path, method string, status int, d time.Duration) {
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(d.Seconds())
}

func (m *Metrics) ObserveEmbed(outcome string) {
	m.embeds.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCompare(representation string, match bool, distance float64) {
	m.compares.WithLabelValues(representation, strconv.FormatBool(match)).Inc()
	m.distances.WithLabelValues(representation).Observe(distance)
}

func (m *Metrics) ObserveEncoder(d time.Duration) {
	m.encoderDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveCache(hit bool) {
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}
