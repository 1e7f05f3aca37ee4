// Package metrics exposes the solver's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IterationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sparsefield_iterations_total",
		Help: "Total number of completed level-set iterations",
	})

	TimeStep = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sparsefield_time_step",
		Help: "Time step of the last iteration",
	})

	RMSChange = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sparsefield_rms_change",
		Help: "RMS change of the active layer in the last iteration",
	})

	ActiveNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sparsefield_active_nodes",
		Help: "Current number of pixels in the active layer",
	})

	LayerMoves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sparsefield_layer_moves_total",
		Help: "Active pixels leaving the active layer, by direction",
	}, []string{"direction"})

	PhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sparsefield_phase_duration_seconds",
		Help:    "Duration of the threaded phases",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
	}, []string{"phase"})

	PoolLiveNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sparsefield_pool_live_nodes",
		Help: "Nodes currently tracking a band pixel",
	})

	PoolsGrown = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sparsefield_pools_grown",
		Help: "Worker pools that outgrew their preallocation",
	})
)

// Phase labels for PhaseDuration.
const (
	PhaseChange = "change"
	PhaseUpdate = "update"
)
