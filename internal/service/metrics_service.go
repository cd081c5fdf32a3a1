package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/newuzbdev/edunite/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	parseFallbacks   prometheus.Counter
	lessonConflicts  *prometheus.CounterVec
	importOverlaps   prometheus.Counter
	attendanceWrites *prometheus.CounterVec
	cellAnomalies    prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the collectors.
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	parseFallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_parse_fallback_total",
		Help: "Schedule texts without a recognisable weekday that fell back to Monday-Friday",
	})

	lessonConflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lesson_conflicts_total",
		Help: "Lesson writes rejected because of an overlapping booking",
	}, []string{"dimension"})

	importOverlaps := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lesson_import_overlaps_total",
		Help: "Overlapping lessons accepted through the import path",
	})

	attendanceWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_writes_total",
		Help: "Attendance writes by source and resulting status",
	}, []string{"source", "status"})

	cellAnomalies := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_cell_anomalies_total",
		Help: "Timetable cells resolved to more than one lesson",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		parseFallbacks, lessonConflicts, importOverlaps, attendanceWrites, cellAnomalies, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheLatency:     cacheLatency,
		cacheWrite:       cacheWrite,
		cacheHitRatio:    cacheHitRatio,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		parseFallbacks:   parseFallbacks,
		lessonConflicts:  lessonConflicts,
		importOverlaps:   importOverlaps,
		attendanceWrites: attendanceWrites,
		cellAnomalies:    cellAnomalies,
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

// Registry exposes the underlying registry, mainly for tests.
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
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordParseFallback counts a schedule text that matched no weekday.
func (m *MetricsService) RecordParseFallback() {
	if m == nil {
		return
	}
	m.parseFallbacks.Inc()
}

// RecordConflict counts a rejected lesson write.
func (m *MetricsService) RecordConflict(dimension models.ConflictDimension) {
	if m == nil {
		return
	}
	m.lessonConflicts.WithLabelValues(string(dimension)).Inc()
}

// RecordImportOverlaps counts overlaps accepted by an import.
func (m *MetricsService) RecordImportOverlaps(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.importOverlaps.Add(float64(n))
}

// RecordAttendanceWrite counts an attendance change.
func (m *MetricsService) RecordAttendanceWrite(source string, status models.AttendanceStatus) {
	if m == nil {
		return
	}
	m.attendanceWrites.WithLabelValues(source, string(status)).Inc()
}

// RecordCellAnomaly counts a timetable cell holding several lessons.
func (m *MetricsService) RecordCellAnomaly() {
	if m == nil {
		return
	}
	m.cellAnomalies.Inc()
}
