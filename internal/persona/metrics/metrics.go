package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the persona module. Tracks the
// verification pipeline end to end plus the stale-score escape hatch, which
// is the signal that the scoring engine is degrading.
type Metrics struct {
	VerificationsRecorded *prometheus.CounterVec
	VerificationFailures  *prometheus.CounterVec
	StaleScoreCommits     prometheus.Counter
	AggregationDuration   prometheus.Histogram
}

// New creates a new Metrics instance with all persona module metrics registered.
func New() *Metrics {
	return &Metrics{
		VerificationsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "persona_verifications_recorded_total",
			Help: "Total verifications committed to personas, by provider",
		}, []string{"provider"}),
		VerificationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "persona_verification_failures_total",
			Help: "Verification attempts that did not commit, by pipeline stage",
		}, []string{"stage"}),
		StaleScoreCommits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "persona_stale_score_commits_total",
			Help: "Verifications committed with the score marked stale because the scoring engine was unavailable",
		}),
		AggregationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "persona_aggregation_duration_seconds",
			Help:    "Duration of the full verification pipeline (acquire through commit)",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// ObserveAggregation records the duration of one verification pipeline run.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAggregation(start time.Time) {
	m.AggregationDuration.Observe(time.Since(start).Seconds())
}
