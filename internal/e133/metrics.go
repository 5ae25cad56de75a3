package e133

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "e133_slp"

// Result label values.
const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Metrics records SLP thread activity. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registrations   *prometheus.CounterVec
	renewals        *prometheus.CounterVec
	deregistrations *prometheus.CounterVec
	discoveries     *prometheus.CounterVec

	registered    prometheus.Gauge
	discovered    prometheus.Gauge
	nextDiscovery prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, []string{"result"})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		})
	}

	m := &Metrics{
		registrations:   counter("registrations_total", "Registration requests processed, by result."),
		renewals:        counter("renewals_total", "Timer driven re-registrations, by result."),
		deregistrations: counter("deregistrations_total", "Deregistration requests processed, by result."),
		discoveries:     counter("discoveries_total", "Discovery polls, by result."),
		registered:      gauge("registered_endpoints", "Endpoints currently kept registered."),
		discovered:      gauge("discovered_endpoints", "Endpoints returned by the last discovery poll."),
		nextDiscovery:   gauge("next_discovery_seconds", "Delay until the next scheduled discovery poll."),
	}

	if reg != nil {
		reg.MustRegister(
			m.registrations,
			m.renewals,
			m.deregistrations,
			m.discoveries,
			m.registered,
			m.discovered,
			m.nextDiscovery,
		)
	}
	return m
}

func resultLabel(ok bool) string {
	if ok {
		return resultSuccess
	}
	return resultFailure
}

func (m *Metrics) observeRegistration(ok bool, tracked int) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(resultLabel(ok)).Inc()
	m.registered.Set(float64(tracked))
}

func (m *Metrics) observeRenewal(ok bool) {
	if m == nil {
		return
	}
	m.renewals.WithLabelValues(resultLabel(ok)).Inc()
}

func (m *Metrics) observeDeregistration(ok bool, tracked int) {
	if m == nil {
		return
	}
	m.deregistrations.WithLabelValues(resultLabel(ok)).Inc()
	m.registered.Set(float64(tracked))
}

func (m *Metrics) observeDiscovery(ok bool, endpoints int, nextSeconds uint16) {
	if m == nil {
		return
	}
	m.discoveries.WithLabelValues(resultLabel(ok)).Inc()
	if ok {
		m.discovered.Set(float64(endpoints))
	}
	m.nextDiscovery.Set(float64(nextSeconds))
}
