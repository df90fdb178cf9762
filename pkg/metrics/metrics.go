package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the counters of snapshot and statistics runs.
// A nil *Metrics is valid and records nothing, so callers need no guards.
type Metrics struct {
	Requests        prometheus.Counter
	Accounts        prometheus.Counter
	FetchRuns       *prometheus.CounterVec
	FetchDuration   prometheus.Histogram
	LastLedger      prometheus.Gauge
	StatsRuns       *prometheus.CounterVec
	AnalyzedAccount prometheus.Gauge
}

// New creates the metrics and registers them on reg.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Requests issued to rippled.",
		}),
		Accounts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "accounts_total",
			Help:      "Account balances written to snapshots.",
		}),
		FetchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "runs_total",
			Help:      "Snapshot runs by result.",
		}, []string{"result"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Wall time of successful snapshot runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		LastLedger: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "last_ledger_index",
			Help:      "Index of the last ledger snapshotted successfully.",
		}),
		StatsRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "runs_total",
			Help:      "Statistics runs by result.",
		}, []string{"result"}),
		AnalyzedAccount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "accounts",
			Help:      "Accounts in the last analyzed snapshot.",
		}),
	}
	reg.MustRegister(m.Requests, m.Accounts, m.FetchRuns, m.FetchDuration, m.LastLedger, m.StatsRuns, m.AnalyzedAccount)
	return m
}

// ObservePage records requests and accounts added since the previous observation.
func (m *Metrics) ObservePage(requests, accounts int) {
	if m == nil {
		return
	}
	m.Requests.Add(float64(requests))
	m.Accounts.Add(float64(accounts))
}

// ObserveFetch records the outcome of a snapshot run.
func (m *Metrics) ObserveFetch(ledgerIndex uint64, seconds float64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.FetchRuns.WithLabelValues(ResultFailure).Inc()
		return
	}
	m.FetchRuns.WithLabelValues(ResultSuccess).Inc()
	m.FetchDuration.Observe(seconds)
	m.LastLedger.Set(float64(ledgerIndex))
}

// ObserveStats records the outcome of a statistics run.
func (m *Metrics) ObserveStats(accounts int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.StatsRuns.WithLabelValues(ResultFailure).Inc()
		return
	}
	m.StatsRuns.WithLabelValues(ResultSuccess).Inc()
	m.AnalyzedAccount.Set(float64(accounts))
}
