package service

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation outcomes used as metric labels.
const (
	outcomeSuccess = "success"
	outcomeError   = "error"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots.
type MetricsService struct {
	registry          *prometheus.Registry
	operationDuration *prometheus.HistogramVec
	operationTotal    *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	invalidations     *prometheus.CounterVec
	cacheLatency      prometheus.Observer
	cacheWrite        prometheus.Observer
	cacheHitRatio     prometheus.Gauge
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	dbQueryDuration   *prometheus.HistogramVec

	cacheHitCount          uint64
	cacheMissCount         uint64
	operationCount         uint64
	operationFailures      uint64
	operationDurationTotal uint64
	notificationCount      uint64
	dbQueryCount           uint64
	dbQueryDurationTotal   uint64
}

// MetricsSnapshot aggregates counters for quick reporting.
type MetricsSnapshot struct {
	Operations                 uint64    `json:"operations"`
	OperationFailures          uint64    `json:"operation_failures"`
	AverageOperationDurationMs float64   `json:"average_operation_duration_ms"`
	Notifications              uint64    `json:"notifications"`
	CacheHitRatio              float64   `json:"cache_hit_ratio"`
	CacheHits                  uint64    `json:"cache_hits"`
	CacheMisses                uint64    `json:"cache_misses"`
	DBQueryCount               uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs   float64   `json:"average_db_query_duration_ms"`
	GeneratedAt                time.Time `json:"generated_at"`
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	operationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timetable_operation_duration_seconds",
		Help:    "Duration of timetable operations in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	operationTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_operations_total",
		Help: "Total number of timetable operations",
	}, []string{"operation", "outcome"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_notifications_total",
		Help: "Boundary changes applied on behalf of callers",
	}, []string{"reason"})

	invalidations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_cache_invalidations_total",
		Help: "Cache invalidation jobs by outcome",
	}, []string{"outcome"})

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

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	registry.MustRegister(operationDuration, operationTotal, notifications, invalidations, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses, dbQueryDuration)

	return &MetricsService{
		registry:          registry,
		operationDuration: operationDuration,
		operationTotal:    operationTotal,
		notifications:     notifications,
		invalidations:     invalidations,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		dbQueryDuration:   dbQueryDuration,
	}
}

// Registry exposes the underlying Prometheus registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveOperation records one timetable operation.
func (m *MetricsService) ObserveOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeError
		atomic.AddUint64(&m.operationFailures, 1)
	}
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	m.operationTotal.WithLabelValues(operation, outcome).Inc()
	atomic.AddUint64(&m.operationCount, 1)
	atomic.AddUint64(&m.operationDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordNotification counts a drained boundary notification.
func (m *MetricsService) RecordNotification(reason string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(reason).Inc()
	atomic.AddUint64(&m.notificationCount, 1)
}

// RecordInvalidation counts a settled cache invalidation job.
func (m *MetricsService) RecordInvalidation(err error) {
	if m == nil {
		return
	}
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeError
	}
	m.invalidations.WithLabelValues(outcome).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
	atomic.AddUint64(&m.dbQueryCount, 1)
	atomic.AddUint64(&m.dbQueryDurationTotal, uint64(duration.Nanoseconds()))
}

// Snapshot returns aggregated metrics.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	ops := atomic.LoadUint64(&m.operationCount)
	opDuration := atomic.LoadUint64(&m.operationDurationTotal)
	dbCount := atomic.LoadUint64(&m.dbQueryCount)
	dbDuration := atomic.LoadUint64(&m.dbQueryDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgOpMs float64
	if ops > 0 {
		avgOpMs = float64(opDuration) / float64(ops) / float64(time.Millisecond)
	}

	var avgDBMs float64
	if dbCount > 0 {
		avgDBMs = float64(dbDuration) / float64(dbCount) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		Operations:                 ops,
		OperationFailures:          atomic.LoadUint64(&m.operationFailures),
		AverageOperationDurationMs: avgOpMs,
		Notifications:              atomic.LoadUint64(&m.notificationCount),
		CacheHitRatio:              cacheRatio,
		CacheHits:                  hits,
		CacheMisses:                misses,
		DBQueryCount:               dbCount,
		AverageDBQueryDurationMs:   avgDBMs,
		GeneratedAt:                time.Now().UTC(),
	}
}
