package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsTotal counts state-changing commands by operation and outcome.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_commands_total",
		Help: "Total number of state commands by operation and outcome",
	}, []string{"operation", "outcome"})

	// HydrationDuration records how long session hydration takes.
	HydrationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agora_hydration_duration_seconds",
		Help:    "Session hydration latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// PersistErrors counts background persistence failures by blob key.
	PersistErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_persist_errors_total",
		Help: "Total number of background persistence failures by key",
	}, []string{"key"})

	// StorageErrorRate counts storage backend errors by operation type.
	StorageErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_storage_error_rate_total",
		Help: "Total number of storage errors by operation type",
	}, []string{"operation"})

	// NotificationsRecorded counts recorded notifications by type.
	NotificationsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_notifications_recorded_total",
		Help: "Total notifications recorded, by type",
	}, []string{"type"})

	// WebSocketConnectionsTotal is the gauge of active WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agora_websocket_connections_total",
		Help: "Number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts pushes dropped because a client's
	// send buffer was full.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})

	// SessionsActive is the gauge of sessions currently in the Ready state.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agora_sessions_active",
		Help: "Number of hydrated sessions currently held",
	})
)

// ObserveCommand records one command outcome.
func ObserveCommand(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	CommandsTotal.WithLabelValues(operation, outcome).Inc()
}

// TrackHydration returns a function that records hydration latency when
// called (e.g. defer).
func TrackHydration() func() {
	start := time.Now()
	return func() {
		HydrationDuration.Observe(time.Since(start).Seconds())
	}
}
