// Package metrics exposes Prometheus counters for the moderation pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once

	// MessagesTotal counts inbound messages by pipeline outcome.
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flagwatch_messages_total",
			Help: "Inbound messages by pipeline outcome",
		},
		[]string{"outcome"},
	)

	// FlagsTotal counts persisted case events by risk tier.
	FlagsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flagwatch_flags_total",
			Help: "Classified events appended to case records",
		},
		[]string{"risk"},
	)

	// DispatchTotal counts alert delivery attempts by channel and result.
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flagwatch_dispatch_total",
			Help: "Alert delivery attempts",
		},
		[]string{"channel", "result"},
	)

	// ProbesTotal counts membership probes by result (member, miss, error).
	ProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flagwatch_membership_probes_total",
			Help: "Membership probes issued against the directory",
		},
		[]string{"result"},
	)

	// ScansActive is 1 while a mutual-community scan runs.
	ScansActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flagwatch_scans_active",
		Help: "Mutual-community scans currently running",
	})

	// ScanUsersChecked counts users whose scan finished.
	ScanUsersChecked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flagwatch_scan_users_checked_total",
		Help: "Users checked by mutual-community scans",
	})
)

// Init registers every collector with a private registry. Safe to call more than once.
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			MessagesTotal,
			FlagsTotal,
			DispatchTotal,
			ProbesTotal,
			ScansActive,
			ScanUsersChecked,
			prometheus.NewGoCollector(),
		)
		if logger != nil {
			logger.Info("Metrics registry initialized")
		}
	})
}

// Registry returns the registry, initializing it if needed.
func Registry() *prometheus.Registry {
	Init(nil)
	return registry
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{})
}
