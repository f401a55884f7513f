package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requests        *prometheus.CounterVec
	cacheHits       prometheus.Counter
	extractDuration prometheus.Histogram
}

func newMetrics(reg *prometheus.Registry) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auger_extract_requests_total",
			Help: "Extraction requests, partitioned by outcome.",
		}, []string{"outcome"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "auger_cache_hits_total",
			Help: "Extraction requests answered from the report cache.",
		}),
		extractDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "auger_extract_duration_seconds",
			Help:    "End-to-end duration of fetch plus extraction.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
