package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels operations that completed.
	OutcomeSuccess = "success"
	// OutcomeError labels operations that failed.
	OutcomeError = "error"
)

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intel",
			Name:      "analyses_total",
			Help:      "Total telemetry analyses performed, partitioned by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intel",
			Name:      "predictions_total",
			Help:      "Total detection-model predictions, partitioned by model and verdict.",
		},
		[]string{"model", "verdict"},
	)

	healingActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intel",
			Name:      "healing_actions_total",
			Help:      "Total healing outcomes, partitioned by issue type and outcome.",
		},
		[]string{"issue_type", "outcome"},
	)

	dbOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intel",
			Name:      "db_operations_total",
			Help:      "Total analysis-store operations, partitioned by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	scoringSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "intel",
			Name:      "scoring_seconds",
			Help:      "Background scoring latency in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)
)

// Register attaches the engine collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		analysesTotal,
		predictionsTotal,
		healingActionsTotal,
		dbOperationsTotal,
		scoringSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAnalysis records one ingestion call per kind and outcome.
func ObserveAnalysis(kind string, err error) {
	analysesTotal.WithLabelValues(kind, outcome(err)).Inc()
}

// ObservePrediction records one detection-model verdict.
func ObservePrediction(model string, verdict bool) {
	predictionsTotal.WithLabelValues(model, strconv.FormatBool(verdict)).Inc()
}

// ObserveHealing records one heal call by issue type and outcome code.
func ObserveHealing(issueType, outcome string) {
	healingActionsTotal.WithLabelValues(issueType, outcome).Inc()
}

// ObserveDBOperation records one analysis-store operation.
func ObserveDBOperation(operation string, err error) {
	dbOperationsTotal.WithLabelValues(operation, outcome(err)).Inc()
}

// ObserveScoring records the latency of one background scoring task.
func ObserveScoring(duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	scoringSeconds.Observe(duration.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
