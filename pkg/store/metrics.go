package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operations tracks store operations by operation ("get", "set", "delete")
// and result ("ok", "miss", "error").
var Operations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "unitools_store_operations_total",
		Help: "Total number of result store operations",
	},
	[]string{"operation", "result"},
)
