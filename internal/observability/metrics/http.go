package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchTotal            *prometheus.CounterVec
	searchDuration         *prometheus.HistogramVec
	searchConfidence       *prometheus.HistogramVec
	searchIncompleteTotal  *prometheus.CounterVec
	enrichmentRunsTotal    *prometheus.CounterVec
	enrichmentSourcesTotal *prometheus.CounterVec
	retrievedPassages      *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragbase",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragbase",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragbase",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragbase",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total completed search requests.",
		},
		[]string{"service", "endpoint"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragbase",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	searchConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragbase",
			Subsystem: "search",
			Name:      "answer_confidence",
			Help:      "Distribution of self-reported answer confidence.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service", "endpoint"},
	)
	searchIncompleteTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragbase",
			Subsystem: "search",
			Name:      "incomplete_total",
			Help:      "Total answers the model marked as incomplete.",
		},
		[]string{"service", "endpoint"},
	)
	enrichmentRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragbase",
			Subsystem: "enrichment",
			Name:      "runs_total",
			Help:      "Total auto-enrichment attempts by outcome.",
		},
		[]string{"service", "outcome"},
	)
	enrichmentSourcesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragbase",
			Subsystem: "enrichment",
			Name:      "sources_total",
			Help:      "Total external items pulled in, by source kind.",
		},
		[]string{"service", "source"},
	)
	retrievedPassages := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragbase",
			Subsystem: "search",
			Name:      "retrieved_passages",
			Help:      "Distribution of retrieved passages per search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		searchDuration,
		searchConfidence,
		searchIncompleteTotal,
		enrichmentRunsTotal,
		enrichmentSourcesTotal,
		retrievedPassages,
	)

	return &HTTPServerMetrics{
		registry:               registry,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		searchTotal:            searchTotal,
		searchDuration:         searchDuration,
		searchConfidence:       searchConfidence,
		searchIncompleteTotal:  searchIncompleteTotal,
		enrichmentRunsTotal:    enrichmentRunsTotal,
		enrichmentSourcesTotal: enrichmentSourcesTotal,
		retrievedPassages:      retrievedPassages,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case path == "/api/documents/upload":
		return path
	case strings.HasPrefix(path, "/api/documents/"):
		return "/api/documents/{document_id}"
	case strings.HasPrefix(path, "/api/sessions/"):
		return "/api/sessions/{session_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordSearch(service, endpoint string, confidence float64, sourceCount int, isComplete bool, duration time.Duration) {
	m.searchTotal.WithLabelValues(service, endpoint).Inc()
	m.searchDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	m.searchConfidence.WithLabelValues(service, endpoint).Observe(confidence)
	m.retrievedPassages.WithLabelValues(service, endpoint).Observe(float64(sourceCount))
	if !isComplete {
		m.searchIncompleteTotal.WithLabelValues(service, endpoint).Inc()
	}
}

func (m *HTTPServerMetrics) RecordEnrichmentRun(service string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.enrichmentRunsTotal.WithLabelValues(service, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordEnrichmentSource(service, source string, items int) {
	if items <= 0 {
		return
	}
	m.enrichmentSourcesTotal.WithLabelValues(service, source).Add(float64(items))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
