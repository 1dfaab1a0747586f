// Package metrics defines the counters and gauges served at /metrics:
// cache hit/miss counts, the time-series LRU's resident-case count, and
// run outcomes. Only the run counters are updated by another package
// (internal/api); CacheHit, CacheMiss and SetResidentCases have no
// callers outside this package, so those series stay at their initial
// values in a running instance.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CacheName identifies which component's hit/miss counters a call affects.
type CacheName string

const (
	CacheField     CacheName = "field"
	CacheTimeIndex CacheName = "timeindex"
	CacheSeries    CacheName = "series"
	CacheLogparser CacheName = "logparser"
)

var (
	cacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foamcore_cache_hits_total",
		Help: "Cache hits, partitioned by cache name.",
	}, []string{"cache"})

	cacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foamcore_cache_misses_total",
		Help: "Cache misses, partitioned by cache name.",
	}, []string{"cache"})

	residentCases = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "foamcore_resident_cases",
		Help: "Number of cases currently resident in the time-series LRU.",
	})

	runsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "foamcore_runs_started_total",
		Help: "Total container runs started.",
	})

	runsFinishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foamcore_runs_finished_total",
		Help: "Total container runs finished, partitioned by outcome.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(cacheHitsTotal, cacheMissesTotal, residentCases, runsStartedTotal, runsFinishedTotal)
}

// CacheHit records a cache hit for the named cache.
func CacheHit(c CacheName) { cacheHitsTotal.WithLabelValues(string(c)).Inc() }

// CacheMiss records a cache miss for the named cache.
func CacheMiss(c CacheName) { cacheMissesTotal.WithLabelValues(string(c)).Inc() }

// SetResidentCases reports the time-series LRU's current size.
func SetResidentCases(n int) { residentCases.Set(float64(n)) }

// RunStarted records that a container run began.
func RunStarted() { runsStartedTotal.Inc() }

// RunFinished records a run's terminal status ("Completed" or "Failed").
func RunFinished(status string) { runsFinishedTotal.WithLabelValues(status).Inc() }

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler { return promhttp.Handler() }
