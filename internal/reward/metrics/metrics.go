package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	PayoutsTotal        prometheus.Counter
	PaidAmountTotal     prometheus.Counter
	PayoutFailuresTotal prometheus.Counter
	ShutdownRefunds     prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		PayoutsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitae_reward_payouts_total",
			Help: "Total number of automatic reward payouts",
		}),
		PaidAmountTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitae_reward_paid_amount_total",
			Help: "Cumulative amount paid out by the reward program",
		}),
		PayoutFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitae_reward_payout_failures_total",
			Help: "Total number of reward transfers that failed and aborted a submission",
		}),
		ShutdownRefunds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitae_reward_shutdown_refunds_total",
			Help: "Total number of shutdown refunds returned to the root account",
		}),
	}
}

func (m *Metrics) ObservePayout(amount uint64) {
	m.PayoutsTotal.Inc()
	m.PaidAmountTotal.Add(float64(amount))
}

func (m *Metrics) IncPayoutFailures() {
	m.PayoutFailuresTotal.Inc()
}

func (m *Metrics) IncShutdownRefunds() {
	m.ShutdownRefunds.Inc()
}
