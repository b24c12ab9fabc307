package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/putevi/briefing-api/internal/compliance"
	"github.com/putevi/briefing-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
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
	dbQueryDuration *prometheus.HistogramVec
	rosterStatus    *prometheus.GaugeVec
	conformityRate  prometheus.Gauge
	telegramTotal   *prometheus.CounterVec
	exportsTotal    *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	dbQueryCount         uint64
	dbQueryDurationTotal uint64
	telegramSent         uint64
	telegramFailed       uint64
	exportCount          uint64

	rosterMu sync.RWMutex
	roster   *models.RosterGauge
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

	rosterStatus := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "briefing_employees",
		Help: "Employees per briefing status at the last full-roster evaluation",
	}, []string{"status"})

	conformityRate := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "briefing_conformity_rate_percent",
		Help: "Share of employees with a valid briefing at the last full-roster evaluation",
	})

	telegramTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telegram_messages_total",
		Help: "Telegram messages by kind and outcome",
	}, []string{"kind", "outcome"})

	exportsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roster_exports_total",
		Help: "Rendered roster exports by format",
	}, []string{"format"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		dbQueryDuration, rosterStatus, conformityRate, telegramTotal, exportsTotal, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		dbQueryDuration: dbQueryDuration,
		rosterStatus:    rosterStatus,
		conformityRate:  conformityRate,
		telegramTotal:   telegramTotal,
		exportsTotal:    exportsTotal,
	}
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
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
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
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

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
	atomic.AddUint64(&m.dbQueryCount, 1)
	atomic.AddUint64(&m.dbQueryDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveRoster publishes the status distribution of an unfiltered roster summary.
func (m *MetricsService) ObserveRoster(s compliance.Summary) {
	if m == nil {
		return
	}
	m.rosterStatus.WithLabelValues(string(compliance.StatusValid)).Set(float64(s.Counts.Valid))
	m.rosterStatus.WithLabelValues(string(compliance.StatusWarning)).Set(float64(s.Counts.Warning))
	m.rosterStatus.WithLabelValues(string(compliance.StatusExpired)).Set(float64(s.Counts.Expired))
	m.rosterStatus.WithLabelValues("invalid").Set(float64(s.InvalidCount))
	m.conformityRate.Set(s.ConformityRate)

	m.rosterMu.Lock()
	m.roster = &models.RosterGauge{Total: s.Total, ConformityRate: s.ConformityRate, EvaluatedAt: time.Now().UTC()}
	m.rosterMu.Unlock()
}

// RecordTelegram counts one Telegram delivery attempt outcome.
func (m *MetricsService) RecordTelegram(kind models.NotificationKind, ok bool) {
	if m == nil {
		return
	}
	outcome := "sent"
	if ok {
		atomic.AddUint64(&m.telegramSent, 1)
	} else {
		outcome = "failed"
		atomic.AddUint64(&m.telegramFailed, 1)
	}
	m.telegramTotal.WithLabelValues(string(kind), outcome).Inc()
}

// RecordExport counts a rendered export.
func (m *MetricsService) RecordExport(format models.ExportFormat) {
	if m == nil {
		return
	}
	m.exportsTotal.WithLabelValues(string(format)).Inc()
	atomic.AddUint64(&m.exportCount, 1)
}

// Snapshot returns aggregated metrics suitable for analytics endpoints.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{TakenAt: time.Now().UTC()}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	dbCount := atomic.LoadUint64(&m.dbQueryCount)

	snap := models.SystemMetrics{
		HTTP: models.RequestStats{
			Total:     requests,
			AverageMs: averageMs(atomic.LoadUint64(&m.requestDurationTotal), requests),
		},
		Cache: models.CacheStats{Hits: hits, Misses: misses},
		Database: models.QueryStats{
			Count:     dbCount,
			AverageMs: averageMs(atomic.LoadUint64(&m.dbQueryDurationTotal), dbCount),
		},
		Telegram: models.DeliveryStats{
			Sent:   atomic.LoadUint64(&m.telegramSent),
			Failed: atomic.LoadUint64(&m.telegramFailed),
		},
		Exports:    atomic.LoadUint64(&m.exportCount),
		Goroutines: runtime.NumGoroutine(),
		TakenAt:    time.Now().UTC(),
	}
	if lookups := hits + misses; lookups > 0 {
		snap.Cache.HitRatio = float64(hits) / float64(lookups)
	}

	m.rosterMu.RLock()
	if m.roster != nil {
		gauge := *m.roster
		snap.Roster = &gauge
	}
	m.rosterMu.RUnlock()
	return snap
}

func averageMs(totalNanos, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return float64(totalNanos) / float64(count) / float64(time.Millisecond)
}
