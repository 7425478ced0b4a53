package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for dispatch runs.
var (
	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unitools_dispatch_tasks_total",
		Help: "Total dispatched tasks by outcome",
	}, []string{"outcome"})

	taskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "unitools_dispatch_task_duration_seconds",
		Help:    "Worker function duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	workersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "unitools_dispatch_workers_active",
		Help: "Number of running dispatch workers",
	})

	callbackErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unitools_dispatch_callback_errors_total",
		Help: "Total number of callback invocations that panicked",
	})
)
