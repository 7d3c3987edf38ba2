package gssapi

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks Prometheus metrics for credential operations.
//
// All metrics use the "gsscred_" prefix. Methods handle a nil receiver
// gracefully, so a nil *Metrics acts as a no-op; metrics are off until
// EnableMetrics is called.
type Metrics struct {
	// Acquisitions counts credential acquisition attempts by result.
	// Labels: result=[success, failure]
	Acquisitions *prometheus.CounterVec

	// Releases counts credential handle releases.
	Releases prometheus.Counter

	// ActiveCredentials tracks the current number of live credential
	// handles owned through this package.
	ActiveCredentials prometheus.Gauge

	// Inquiries counts introspection calls by result.
	// Labels: result=[success, failure, decode_failure]
	Inquiries *prometheus.CounterVec

	// CleanupReleases counts owned handles released on inquire failure
	// paths. Labels: handle=[name, mechanisms]
	CleanupReleases *prometheus.CounterVec
}

const (
	resultSuccess       = "success"
	resultFailure       = "failure"
	resultDecodeFailure = "decode_failure"
)

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// EnableMetrics creates and registers the package metrics.
//
// If registerer is nil, prometheus.DefaultRegisterer is used. The
// function is idempotent: metrics are registered exactly once even if
// called multiple times. Call it during program initialization, before
// credential operations begin.
func EnableMetrics(registerer prometheus.Registerer) *Metrics {
	metricsOnce.Do(func() {
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}

		m := &Metrics{
			Acquisitions: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gsscred_acquisitions_total",
					Help: "Total credential acquisition attempts by result",
				},
				[]string{"result"},
			),
			Releases: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "gsscred_releases_total",
					Help: "Total credential handle releases",
				},
			),
			ActiveCredentials: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "gsscred_active_credentials",
					Help: "Current number of live credential handles",
				},
			),
			Inquiries: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gsscred_inquiries_total",
					Help: "Total credential introspection calls by result",
				},
				[]string{"result"},
			),
			CleanupReleases: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gsscred_cleanup_releases_total",
					Help: "Owned handles released on inquire failure paths",
				},
				[]string{"handle"},
			),
		}

		registerer.MustRegister(
			m.Acquisitions,
			m.Releases,
			m.ActiveCredentials,
			m.Inquiries,
			m.CleanupReleases,
		)

		metrics = m
	})

	return metrics
}

// RecordAcquisition records a credential acquisition attempt.
func (m *Metrics) RecordAcquisition(success bool) {
	if m == nil {
		return
	}
	if success {
		m.Acquisitions.WithLabelValues(resultSuccess).Inc()
	} else {
		m.Acquisitions.WithLabelValues(resultFailure).Inc()
	}
}

// RecordAdoption records a live handle entering this package's
// ownership, whether through Acquire or Adopt.
func (m *Metrics) RecordAdoption() {
	if m == nil {
		return
	}
	m.ActiveCredentials.Inc()
}

// RecordRelease records a credential handle release.
func (m *Metrics) RecordRelease() {
	if m == nil {
		return
	}
	m.Releases.Inc()
	m.ActiveCredentials.Dec()
}

// RecordInquiry records an introspection call outcome.
func (m *Metrics) RecordInquiry(result string) {
	if m == nil {
		return
	}
	m.Inquiries.WithLabelValues(result).Inc()
}

// RecordCleanupRelease records an owned handle released while draining
// a failed inquire.
func (m *Metrics) RecordCleanupRelease(handle string) {
	if m == nil {
		return
	}
	m.CleanupReleases.WithLabelValues(handle).Inc()
}
