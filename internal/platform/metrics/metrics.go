package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	LoginsTotal        prometheus.Counter
	LoginFailures      prometheus.Counter
	CommandsTotal      *prometheus.CounterVec
	UnauthorizedTotal  prometheus.Counter
	UnknownCommands    prometheus.Counter
	FramesAssembled    prometheus.Counter
	FrameOverflows     prometheus.Counter
	ActiveSessions     prometheus.Gauge
	DispatchDurationMs prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		LoginsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idwallet_logins_total",
			Help: "Total number of successful logins",
		}),
		LoginFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idwallet_login_failures_total",
			Help: "Total number of rejected login attempts",
		}),
		CommandsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idwallet_commands_total",
			Help: "Commands dispatched, labelled by message type",
		}, []string{"type"}),
		UnauthorizedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idwallet_unauthorized_total",
			Help: "Gated commands rejected for missing or expired sessions",
		}),
		UnknownCommands: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idwallet_unknown_commands_total",
			Help: "Commands rejected for an unrecognized message type",
		}),
		FramesAssembled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idwallet_frames_assembled_total",
			Help: "Complete frames extracted from raw-stream connections",
		}),
		FrameOverflows: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idwallet_frame_overflows_total",
			Help: "Connections dropped for exceeding the reassembly buffer",
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "idwallet_active_sessions",
			Help: "Sessions currently held in the session store",
		}),
		DispatchDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "idwallet_dispatch_duration_ms",
			Help:    "Latency of command dispatch in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
		}),
	}
}
