// Package metrics exposes prometheus collectors for the upstream boundary.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridworker_subworker_registrations_total",
			Help: "subworker registration attempts by result.",
		},
		[]string{"result"},
	)

	localizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridworker_localizations_total",
			Help: "data localizations by wire storage kind and result.",
		},
		[]string{"storage", "result"},
	)

	subworkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridworker_subworkers",
			Help: "currently registered subworkers.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		registrations,
		localizations,
		subworkers,
	)
}

// ObserveRegistration counts one registration attempt.
func ObserveRegistration(result string) {
	registrations.WithLabelValues(result).Inc()
}

// ObserveLocalization counts one localization.
func ObserveLocalization(storage, result string) {
	localizations.WithLabelValues(storage, result).Inc()
}

// SetSubworkers records the number of live registrations.
func SetSubworkers(n int) {
	subworkers.Set(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
