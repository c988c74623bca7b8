package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framegate",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by framegate",
		},
		[]string{"route", "method", "code"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "framegate",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests handled by framegate",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	responseCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framegate",
			Name:      "response_cache_hits_total",
			Help:      "Total response cache hits",
		},
		[]string{"route"},
	)

	responseCacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framegate",
			Name:      "response_cache_misses_total",
			Help:      "Total response cache misses",
		},
		[]string{"route"},
	)

	dataCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framegate",
			Name:      "data_cache_hits_total",
			Help:      "Game data lookups served from memory",
		},
		[]string{"game"},
	)

	dataCacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framegate",
			Name:      "data_cache_misses_total",
			Help:      "Game data lookups that required an upstream fetch",
		},
		[]string{"game"},
	)

	upstreamFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framegate",
			Name:      "upstream_fetches_total",
			Help:      "Upstream document fetches by outcome",
		},
		[]string{"host", "outcome"},
	)

	upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "framegate",
			Name:      "upstream_fetch_duration_seconds",
			Help:      "Duration of upstream document fetches",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"host"},
	)

	clusterUnhealthy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "framegate",
			Name:      "upstream_unhealthy_endpoints",
			Help:      "Number of unhealthy upstream mirrors per cluster",
		},
		[]string{"cluster"},
	)

	initOnce sync.Once
)

// Init registers the collectors with the default registry. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			requestTotal, requestDuration,
			responseCacheHits, responseCacheMisses,
			dataCacheHits, dataCacheMisses,
			upstreamFetches, upstreamDuration,
			clusterUnhealthy,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveRequest(route, method, code string, d time.Duration) {
	requestTotal.WithLabelValues(route, method, code).Inc()
	requestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func IncResponseCacheHit(route string) {
	responseCacheHits.WithLabelValues(route).Inc()
}

func IncResponseCacheMiss(route string) {
	responseCacheMisses.WithLabelValues(route).Inc()
}

func IncDataCacheHit(game string) {
	dataCacheHits.WithLabelValues(game).Inc()
}

func IncDataCacheMiss(game string) {
	dataCacheMisses.WithLabelValues(game).Inc()
}

// ObserveUpstreamFetch records one fetch. outcome is "ok", "fetch_failure"
// or "invalid_payload".
func ObserveUpstreamFetch(host, outcome string, d time.Duration) {
	upstreamFetches.WithLabelValues(host, outcome).Inc()
	upstreamDuration.WithLabelValues(host).Observe(d.Seconds())
}

func SetClusterUnhealthy(cluster string, value float64) {
	clusterUnhealthy.WithLabelValues(cluster).Set(value)
}
