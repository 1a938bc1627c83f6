package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chayanC7mondal/project-sync-sub000/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the attendance API,
// the dispatcher and the reminder scheduler. All methods are nil-safe.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	marks           *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	triggers        *prometheus.CounterVec
	tickDuration    prometheus.Histogram
	absences        prometheus.Counter

	requestCount uint64
	tickCount    uint64
}

// MetricsSnapshot is a lightweight view used by the health endpoint.
type MetricsSnapshot struct {
	RequestsTotal uint64    `json:"requests_total"`
	SchedulerRuns uint64    `json:"scheduler_runs"`
	Goroutines    int       `json:"goroutines"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	marks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_marks_total",
		Help: "Self-service and liaison attendance marks by result",
	}, []string{"method", "result"})

	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_deliveries_total",
		Help: "Notification channel attempts by outcome",
	}, []string{"channel", "result"})

	triggers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_triggers_total",
		Help: "Reminder and escalation triggers handed to the dispatch queue",
	}, []string{"kind"})

	tickDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_tick_duration_seconds",
		Help:    "Duration of reminder scheduler ticks",
		Buckets: prometheus.DefBuckets,
	})

	absences := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_absences_swept_total",
		Help: "Attendance records moved to absent by the sweep",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, marks, deliveries, triggers, tickDuration, absences, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		marks:           marks,
		deliveries:      deliveries,
		triggers:        triggers,
		tickDuration:    tickDuration,
		absences:        absences,
	}
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordMark counts one attendance mark attempt.
func (m *MetricsService) RecordMark(method models.AttendanceMethod, result string) {
	if m == nil {
		return
	}
	m.marks.WithLabelValues(string(method), result).Inc()
}

// RecordDelivery counts one channel outcome.
func (m *MetricsService) RecordDelivery(channel string, outcome models.ChannelOutcome) {
	if m == nil {
		return
	}
	result := "skipped"
	switch {
	case outcome.Attempted && outcome.Success:
		result = "success"
	case outcome.Attempted:
		result = "failure"
	}
	m.deliveries.WithLabelValues(channel, result).Inc()
}

// RecordTrigger counts a request handed to the dispatch queue.
func (m *MetricsService) RecordTrigger(kind models.TriggerKind) {
	if m == nil {
		return
	}
	m.triggers.WithLabelValues(string(kind)).Inc()
}

// RecordAbsences counts records moved to absent.
func (m *MetricsService) RecordAbsences(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.absences.Add(float64(n))
}

// ObserveTick records scheduler tick timing.
func (m *MetricsService) ObserveTick(duration time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(duration.Seconds())
	atomic.AddUint64(&m.tickCount, 1)
}

// Snapshot returns aggregated counters for the health endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		RequestsTotal: atomic.LoadUint64(&m.requestCount),
		SchedulerRuns: atomic.LoadUint64(&m.tickCount),
		Goroutines:    runtime.NumGoroutine(),
		GeneratedAt:   time.Now().UTC(),
	}
}
