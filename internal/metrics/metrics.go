// Package metrics defines the Prometheus metrics of the staff store.
// All metrics register with the default registry on package load.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "staff_store"

// LoginAttemptsTotal counts identity resolutions.
// Labels:
//   - path: "fallback", "local" or "directory"
//   - result: "authenticated", "rejected", "unavailable", "duplicate" or "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by resolution path and result.",
	},
	[]string{"path", "result"},
)

// UsersProvisionedTotal counts directory users created on first login.
var UsersProvisionedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "users_provisioned_total",
		Help:      "Total number of users created lazily after a first successful directory login.",
	},
)

// DirectoryBindDuration measures one directory bind round trip.
// Labels:
//   - mode: "simple_bind" or "service_account"
//   - outcome: "ok", "invalid_credentials", "not_found", "unreachable", "timeout"
var DirectoryBindDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "directory_bind_duration_seconds",
		Help:      "Duration of directory bind attempts.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"mode", "outcome"},
)

// CheckoutsTotal counts checkout attempts.
// Label:
//   - result: "success", "insufficient_balance", "insufficient_inventory", "item_unavailable", "invalid", "error"
var CheckoutsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkouts_total",
		Help:      "Total number of checkout attempts, by result.",
	},
	[]string{"result"},
)

// CurrencySpentTotal accumulates the value of committed orders in minor units.
var CurrencySpentTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "currency_spent_total",
		Help:      "Sum of committed order totals in minor currency units.",
	},
)
