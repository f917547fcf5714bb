package evolve

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lsh_evolve_evaluations_total",
		Help: "Fitness evaluations by outcome",
	}, []string{"outcome"})

	childrenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lsh_evolve_children_total",
		Help: "Bred or mutated children by result",
	}, []string{"result"})

	populationSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lsh_evolve_population",
		Help: "Number of persisted hash functions",
	})

	bestScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lsh_evolve_best_score",
		Help: "Best p1 - p2 in the population",
	})

	evaluationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lsh_evolve_evaluation_seconds",
		Help:    "Duration of a single fitness evaluation",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})
)

const (
	outcomeFull      = "full"
	outcomeEarlyExit = "early_exit"

	resultStored    = "stored"
	resultDuplicate = "duplicate"
	resultInvalid   = "invalid"
)
