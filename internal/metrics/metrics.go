package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	GamesStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mafia_games_started_total",
			Help: "Total number of games started",
		},
	)
	GamesEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mafia_games_ended_total",
			Help: "Total number of games ended, by winner",
		},
		[]string{"winner"},
	)
	PhaseTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mafia_phase_transitions_total",
			Help: "Total number of phase transitions, by phase entered",
		},
		[]string{"phase"},
	)
	RejectedInputs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mafia_rejected_inputs_total",
			Help: "Total number of rejected player inputs, by error code",
		},
		[]string{"code"},
	)
	ActiveRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mafia_active_rooms",
			Help: "Number of rooms currently open",
		},
	)
	ConnectedPlayers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mafia_connected_players",
			Help: "Number of open websocket connections",
		},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Total number of requests and messages dropped by rate limiting",
		},
		[]string{"source"},
	)
)

// InitPrometheus registers the metrics. Call this once from main.go
func InitPrometheus() {
	prometheus.MustRegister(
		GamesStarted,
		GamesEnded,
		PhaseTransitions,
		RejectedInputs,
		ActiveRooms,
		ConnectedPlayers,
		HTTPRequestsTotal,
		HTTPRequestDuration,
		RateLimited,
	)
}
