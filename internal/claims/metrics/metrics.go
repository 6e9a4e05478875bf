package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SubmittedTotal           *prometheus.CounterVec
	EndorsementsTotal        prometheus.Counter
	EndorsementOverflowTotal prometheus.Counter
	CacheRequestsTotal       *prometheus.CounterVec
	SearchesTotal            prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		SubmittedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vitae_claims_submitted_total",
			Help: "Total number of accepted claim submissions by category",
		}, []string{"category"}),
		EndorsementsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitae_claim_endorsements_total",
			Help: "Total number of recorded endorsements",
		}),
		EndorsementOverflowTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitae_claim_endorsement_overflow_total",
			Help: "Total number of endorsements acknowledged but not recorded because the endorser list was full",
		}),
		CacheRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vitae_claim_cache_requests_total",
			Help: "Claim cache lookups by outcome",
		}, []string{"outcome"}),
		SearchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitae_claim_searches_total",
			Help: "Total number of keyword searches over the ledger",
		}),
	}
}

func (m *Metrics) IncSubmitted(category string) {
	m.SubmittedTotal.WithLabelValues(category).Inc()
}

func (m *Metrics) IncEndorsement(recorded bool) {
	m.EndorsementsTotal.Inc()
	if !recorded {
		m.EndorsementOverflowTotal.Inc()
	}
}

func (m *Metrics) ObserveCache(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheRequestsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncSearches() {
	m.SearchesTotal.Inc()
}
