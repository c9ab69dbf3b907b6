// Package metrics exposes Prometheus collectors for the sponsorship core.
//
// All collectors live on a private registry so several services (and
// tests) can coexist in one process.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sponsor"

// Reservation outcomes.
const (
	OutcomeReserved  = "reserved"
	OutcomeRejected  = "rejected"
	OutcomeCommitted = "committed"
	OutcomeReleased  = "released"
)

// Upload outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Reservations    *prometheus.CounterVec
	WincSpent       *prometheus.CounterVec
	Uploads         *prometheus.CounterVec
	UploadDuration  *prometheus.HistogramVec
	PublishedFiles  prometheus.Counter
	PublishedBytes  prometheus.Counter
	CleanupFailures prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.Reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "reservations_total",
			Help:      "Spend reservations by outcome.",
		},
		[]string{"outcome"},
	)
	m.WincSpent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "winc_spent_total",
			Help:      "Network fee paid, in winc, by sponsorship tier.",
		},
		[]string{"tier"},
	)
	m.Uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deploy",
			Name:      "uploads_total",
			Help:      "Upload requests by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)
	m.UploadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "deploy",
			Name:      "upload_duration_seconds",
			Help:      "Wall time of upload requests.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"tier"},
	)
	m.PublishedFiles = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "deploy",
		Name:      "published_files_total",
		Help:      "Files accepted by the storage network.",
	})
	m.PublishedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "deploy",
		Name:      "published_bytes_total",
		Help:      "Bytes accepted by the storage network.",
	})
	m.CleanupFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "deploy",
		Name:      "cleanup_failures_total",
		Help:      "Temporary artifacts that could not be removed.",
	})

	m.registry.MustRegister(
		m.Reservations,
		m.WincSpent,
		m.Uploads,
		m.UploadDuration,
		m.PublishedFiles,
		m.PublishedBytes,
		m.CleanupFailures,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveReservation counts one ledger transition.
func (m *Metrics) ObserveReservation(outcome string) {
	if m == nil {
		return
	}
	m.Reservations.WithLabelValues(outcome).Inc()
}

// ObserveSpend adds winc paid under tier.
func (m *Metrics) ObserveSpend(tier string, winc uint64) {
	if m == nil || winc == 0 {
		return
	}
	m.WincSpent.WithLabelValues(tier).Add(float64(winc))
}

// ObservePublished counts one file accepted by the network.
func (m *Metrics) ObservePublished(size int) {
	if m == nil {
		return
	}
	m.PublishedFiles.Inc()
	m.PublishedBytes.Add(float64(size))
}

// ObserveUpload records a finished upload request.
func (m *Metrics) ObserveUpload(tier, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(tier, outcome).Inc()
	m.UploadDuration.WithLabelValues(tier).Observe(elapsed.Seconds())
}

// ObserveCleanupFailure counts artifacts left behind.
func (m *Metrics) ObserveCleanupFailure(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CleanupFailures.Add(float64(n))
}
