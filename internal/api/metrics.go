package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trier",
		Name:      "transactions_scored_total",
		Help:      "Transactions scored, by resulting risk level.",
	}, []string{"risk_level"})

	scoreFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trier",
		Name:      "scoring_failures_total",
		Help:      "Transactions rejected by validation or scoring.",
	})

	scoreDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "trier",
		Name:      "scoring_duration_seconds",
		Help:      "Latency of single-transaction scoring.",
		Buckets:   prometheus.DefBuckets,
	})

	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trier",
		Name:      "batches_evaluated_total",
		Help:      "Batch evaluation runs completed.",
	})

	alertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trier",
		Name:      "alerts_total",
		Help:      "HIGH-risk results produced.",
	})
)
