// internal/engine/metrics.go
package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kestrel_events_total",
		Help: "Raw events collected, by collector.",
	}, []string{"collector"})

	alertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kestrel_alerts_total",
		Help: "Alerts created from analyzed events, by collector.",
	}, []string{"collector"})

	metricSamplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kestrel_system_samples_total",
		Help: "System-health samples persisted.",
	})

	collectErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kestrel_collect_errors_total",
		Help: "Failed poll cycles, by collector.",
	}, []string{"collector"})
)
