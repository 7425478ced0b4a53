package qps

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicksTotal counts recorded attempts by outcome ("success", "fail").
	TicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unitools_qps_ticks_total",
			Help: "Total number of attempts recorded by QPS counters",
		},
		[]string{"outcome"},
	)

	// ThrottleWaits counts sleeps caused by an exceeded QPS limit.
	ThrottleWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unitools_qps_throttle_waits_total",
			Help: "Total number of waits caused by an exceeded QPS limit",
		},
	)

	// StoreErrors counts failed Redis operations of shared counters.
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unitools_qps_store_errors_total",
			Help: "Total number of Redis errors in shared QPS counters",
		},
		[]string{"operation"}, // "tick", "get"
	)
)

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "fail"
}
