package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation on a private registry.
// A nil *MetricsService is valid and records nothing.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	quizSubmissions *prometheus.CounterVec
	quizScores      prometheus.Histogram
	completions     prometheus.Counter
	certsIssued     prometheus.Counter
	certFailures    *prometheus.CounterVec
	versionConflict *prometheus.CounterVec
	backfillQueued  prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache set operations",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		quizSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_submissions_total",
			Help: "Graded quiz submissions",
		}, []string{"passed"}),
		quizScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quiz_score",
			Help:    "Distribution of quiz scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		completions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "course_completions_total",
			Help: "Enrollments that reached 100% progress",
		}),
		certsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "certificates_issued_total",
			Help: "Certificates issued",
		}),
		certFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certificate_failures_total",
			Help: "Certificate issuance failures by stage",
		}, []string{"stage"}),
		versionConflict: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollment_version_conflicts_total",
			Help: "Optimistic enrollment update conflicts by outcome",
		}, []string{"outcome"}),
		backfillQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "certificate_backfill_enqueued_total",
			Help: "Enrollments queued by the certificate backfill sweep",
		}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(m.requestDuration, m.requestTotal, m.cacheLatency, m.cacheWrite,
		m.cacheLookups, m.quizSubmissions, m.quizScores, m.completions, m.certsIssued, m.certFailures,
		m.versionConflict, m.backfillQueued, goroutines)

	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the private registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup result.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordQuizSubmission counts a graded submission.
func (m *MetricsService) RecordQuizSubmission(score int, passed bool) {
	if m == nil {
		return
	}
	m.quizSubmissions.WithLabelValues(strconv.FormatBool(passed)).Inc()
	m.quizScores.Observe(float64(score))
}

// RecordCompletion counts an enrollment reaching completion.
func (m *MetricsService) RecordCompletion() {
	if m == nil {
		return
	}
	m.completions.Inc()
}

// RecordCertificateIssued counts an issued certificate.
func (m *MetricsService) RecordCertificateIssued() {
	if m == nil {
		return
	}
	m.certsIssued.Inc()
}

// RecordCertificateFailure counts a failed issuance at stage (render, store, sign, persist, lookup).
func (m *MetricsService) RecordCertificateFailure(stage string) {
	if m == nil {
		return
	}
	m.certFailures.WithLabelValues(stage).Inc()
}

// RecordVersionConflict counts an optimistic conflict; exhausted marks the final give-up.
func (m *MetricsService) RecordVersionConflict(exhausted bool) {
	if m == nil {
		return
	}
	outcome := "retried"
	if exhausted {
		outcome = "exhausted"
	}
	m.versionConflict.WithLabelValues(outcome).Inc()
}

// RecordBackfillEnqueued counts enrollments queued for certificate backfill.
func (m *MetricsService) RecordBackfillEnqueued(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.backfillQueued.Add(float64(n))
}
