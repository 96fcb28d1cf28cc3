package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the reward module. PurchaseFailures is
// labeled by failure kind so the one alarming case, a charge without an
// access grant, is visible on its own.
type Metrics struct {
	RewardsCreated   prometheus.Counter
	RewardsDeleted   prometheus.Counter
	Purchases        prometheus.Counter
	PurchaseFailures *prometheus.CounterVec
	PurchaseDuration prometheus.Histogram
}

// New creates a new Metrics instance with all reward module metrics registered.
func New() *Metrics {
	return &Metrics{
		RewardsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reward_created_total",
			Help: "Total rewards created",
		}),
		RewardsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reward_deleted_total",
			Help: "Total rewards deleted by their creators",
		}),
		Purchases: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reward_purchases_total",
			Help: "Total completed reward purchases (charged and granted)",
		}),
		PurchaseFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reward_purchase_failures_total",
			Help: "Failed reward purchases, by failure kind",
		}, []string{"kind"}),
		PurchaseDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "reward_purchase_duration_seconds",
			Help:    "Duration of the two-phase purchase (charge plus access grant)",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// ObservePurchase records the duration of one purchase attempt. Call with
// time.Now() at the start of the operation.
func (m *Metrics) ObservePurchase(start time.Time) {
	m.PurchaseDuration.Observe(time.Since(start).Seconds())
}
