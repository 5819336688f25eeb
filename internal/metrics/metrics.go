// Package metrics defines the Prometheus instruments shared by the relay and
// the backend. Registration happens once via promauto on the default
// registry; /metrics on either binary exposes whatever that process touches.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every instrument the control plane emits.
type Metrics struct {
	// Vote intake
	VotesAccepted *prometheus.CounterVec
	VotesRejected *prometheus.CounterVec

	// Tick processing
	TicksProcessed *prometheus.CounterVec
	TickErrors     *prometheus.CounterVec
	TickDuration   prometheus.Histogram

	// Connections
	ConnectedAgents prometheus.Gauge
	HomeConnected   prometheus.Gauge
	StateBroadcasts prometheus.Counter

	// Enforcement
	RateLimitRejections *prometheus.CounterVec
	BansIssued          *prometheus.CounterVec
}

// New creates and registers all instruments.
func New() *Metrics {
	return &Metrics{
		VotesAccepted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowdplay_votes_accepted_total",
				Help: "Votes accepted into the pending tick",
			},
			[]string{"action"},
		),
		VotesRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowdplay_votes_rejected_total",
				Help: "Votes rejected before aggregation",
			},
			[]string{"reason"}, // invalid_action, rate_limited, banned
		),
		TicksProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowdplay_ticks_processed_total",
				Help: "Completed tick pipeline runs",
			},
			[]string{"mode"}, // overworld, battle
		),
		TickErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowdplay_tick_errors_total",
				Help: "Tick pipeline runs skipped after an error",
			},
			[]string{"stage"}, // tally, emulator, publish, clear
		),
		TickDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crowdplay_tick_duration_seconds",
				Help:    "Wall time of one tick pipeline run",
				Buckets: prometheus.DefBuckets,
			},
		),
		ConnectedAgents: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crowdplay_connected_agents",
				Help: "Agent WebSocket connections currently open",
			},
		),
		HomeConnected: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crowdplay_home_connected",
				Help: "1 while a home backend heartbeat is fresh",
			},
		),
		StateBroadcasts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crowdplay_state_broadcasts_total",
				Help: "State documents fanned out to agent connections",
			},
		),
		RateLimitRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowdplay_rate_limit_rejections_total",
				Help: "Requests rejected by the per-agent token bucket",
			},
			[]string{"plan"},
		),
		BansIssued: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowdplay_bans_issued_total",
				Help: "Bans recorded, by target kind and source",
			},
			[]string{"kind", "source"}, // source: admin, auto
		),
	}
}
