package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics covers the match lifecycle and the leaderboard. All methods are
// nil-safe so services can run without metrics in tests.
type Metrics struct {
	matchesProposed   prometheus.Counter
	matchesCompleted  prometheus.Counter
	matchesRejected   prometheus.Counter
	settlementsClosed prometheus.Counter
	rankingLatency    prometheus.Histogram
	subscribers       prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		matchesProposed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_proposed_total",
			Help:      "Total number of proposed matches",
		}),
		matchesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_completed_total",
			Help:      "Total number of matches accepted into the ranking",
		}),
		matchesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_rejected_total",
			Help:      "Total number of rejected matches",
		}),
		settlementsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_closed_total",
			Help:      "Total number of confirmed bet settlements",
		}),
		rankingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ranking_compute_seconds",
			Help:      "Leaderboard recomputation latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "leaderboard_subscribers",
			Help:      "Number of connected leaderboard WebSocket clients",
		}),
	}

	prometheus.MustRegister(
		m.matchesProposed,
		m.matchesCompleted,
		m.matchesRejected,
		m.settlementsClosed,
		m.rankingLatency,
		m.subscribers,
	)
	return m
}

// Handler exposes the registry for mounting at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) MatchProposed() {
	if m == nil {
		return
	}
	m.matchesProposed.Inc()
}

func (m *Metrics) MatchCompleted() {
	if m == nil {
		return
	}
	m.matchesCompleted.Inc()
}

func (m *Metrics) MatchRejected() {
	if m == nil {
		return
	}
	m.matchesRejected.Inc()
}

func (m *Metrics) SettlementClosed() {
	if m == nil {
		return
	}
	m.settlementsClosed.Inc()
}

func (m *Metrics) ObserveRankingLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.rankingLatency.Observe(d.Seconds())
}

func (m *Metrics) SubscriberConnected() {
	if m == nil {
		return
	}
	m.subscribers.Inc()
}

func (m *Metrics) SubscriberDisconnected() {
	if m == nil {
		return
	}
	m.subscribers.Dec()
}
