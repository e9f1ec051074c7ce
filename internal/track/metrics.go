package track

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// readingsTotal counts raw readings by origin and reconcile outcome.
	readingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stridelog_readings_total",
		Help: "Raw counter readings by origin and reconcile outcome",
	}, []string{"origin", "outcome"})

	// counterResetsTotal counts detected counter resets.
	counterResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stridelog_counter_resets_total",
		Help: "Counter resets detected (source rebased without attributing steps)",
	})

	// flushesTotal counts persistence flushes by trigger.
	flushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stridelog_flushes_total",
		Help: "Persistence flushes by trigger",
	}, []string{"trigger"})

	// flushErrorsTotal counts failed persistence flushes.
	flushErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stridelog_flush_errors_total",
		Help: "Persistence flushes that failed",
	})

	// streamReconnectsTotal counts stream resubscriptions after errors.
	streamReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stridelog_stream_reconnects_total",
		Help: "Stream resubscription attempts by stream name",
	}, []string{"stream"})

	// sessionStepsGauge tracks the open session's step count.
	sessionStepsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stridelog_session_steps",
		Help: "Steps attributed to the open session (0 when idle)",
	})

	// lifetimeStepsGauge tracks the lifetime total including the open session.
	lifetimeStepsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stridelog_total_steps",
		Help: "Lifetime step total including the open session",
	})
)
