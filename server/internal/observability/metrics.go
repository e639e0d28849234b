package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "atlas"

// Metrics holds the Prometheus collectors of the map service.
type Metrics struct {
	registry *prometheus.Registry

	Generations        *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	MapCities          prometheus.Histogram
	CacheLookups       *prometheus.CounterVec
	RateLimited        prometheus.Counter
	HTTPRequests       *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "map_generations_total",
				Help:      "Total number of map generations by outcome",
			},
			[]string{"status"},
		),
		GenerationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "map_generation_duration_seconds",
				Help:      "Map generation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		MapCities: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "map_cities",
				Help:      "Number of cities per generated map",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "map_cache_lookups_total",
				Help:      "Map cache lookups by result",
			},
			[]string{"result"},
		),
		RateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "map_regenerations_rate_limited_total",
				Help:      "Regeneration requests rejected by the rate limiter",
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
	}
	m.registry.MustRegister(
		m.Generations,
		m.GenerationDuration,
		m.MapCities,
		m.CacheLookups,
		m.RateLimited,
		m.HTTPRequests,
	)
	return m
}

// RecordGeneration records one generation attempt.
func (m *Metrics) RecordGeneration(duration time.Duration, cities int, err error) {
	if err != nil {
		m.Generations.WithLabelValues("error").Inc()
		return
	}
	m.Generations.WithLabelValues("ok").Inc()
	m.GenerationDuration.Observe(duration.Seconds())
	m.MapCities.Observe(float64(cities))
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// RecordRateLimited records a rejected regeneration.
func (m *Metrics) RecordRateLimited() {
	m.RateLimited.Inc()
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Overview is a point-in-time summary of the collectors since process start.
type Overview struct {
	Generations       int64   `json:"generations"`
	FailedGenerations int64   `json:"failed_generations"`
	SuccessRate       float64 `json:"success_rate"`
	AvgGenerationMs   int64   `json:"avg_generation_ms"`
	CacheHitRate      float64 `json:"cache_hit_rate"`
	RateLimited       int64   `json:"rate_limited"`
}

// Overview gathers the registry into an Overview.
func (m *Metrics) Overview() (Overview, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return Overview{}, err
	}

	var ok, failed, hits, misses, limited, durationSum float64
	var durationCount uint64
	for _, family := range families {
		switch family.GetName() {
		case namespace + "_map_generations_total":
			for _, metric := range family.GetMetric() {
				for _, label := range metric.GetLabel() {
					if label.GetName() != "status" {
						continue
					}
					if label.GetValue() == "ok" {
						ok += metric.GetCounter().GetValue()
					} else {
						failed += metric.GetCounter().GetValue()
					}
				}
			}
		case namespace + "_map_generation_duration_seconds":
			for _, metric := range family.GetMetric() {
				durationSum += metric.GetHistogram().GetSampleSum()
				durationCount += metric.GetHistogram().GetSampleCount()
			}
		case namespace + "_map_cache_lookups_total":
			for _, metric := range family.GetMetric() {
				for _, label := range metric.GetLabel() {
					if label.GetName() == "result" && label.GetValue() == "hit" {
						hits += metric.GetCounter().GetValue()
					} else if label.GetName() == "result" {
						misses += metric.GetCounter().GetValue()
					}
				}
			}
		case namespace + "_map_regenerations_rate_limited_total":
			for _, metric := range family.GetMetric() {
				limited += metric.GetCounter().GetValue()
			}
		}
	}

	o := Overview{
		Generations:       int64(ok + failed),
		FailedGenerations: int64(failed),
		RateLimited:       int64(limited),
	}
	if total := ok + failed; total > 0 {
		o.SuccessRate = ok / total
	}
	if durationCount > 0 {
		o.AvgGenerationMs = int64(durationSum / float64(durationCount) * 1000)
	}
	if lookups := hits + misses; lookups > 0 {
		o.CacheHitRate = hits / lookups
	}
	return o, nil
}
