package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelinesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mongopipe",
		Name:      "executions_total",
		Help:      "The total number of aggregations and finds sent to the driver.",
	}, []string{"op"})

	executionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mongopipe",
		Name:      "execution_errors_total",
		Help:      "The total number of requests the driver failed.",
	}, []string{"op"})

	executeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mongopipe",
		Name:      "execute_duration_seconds",
		Help:      "Time until the driver returned the first batch.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"op"})

	documentsDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mongopipe",
		Name:      "documents_decoded_total",
		Help:      "The total number of result documents decoded through the mapper.",
	})

	entityCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mongopipe",
		Name:      "entity_cache_hits_total",
		Help:      "The total number of results served from the entity cache.",
	})
)
