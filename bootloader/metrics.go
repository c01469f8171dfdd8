package bootloader

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "sdboot"

// Metrics counts boot outcomes. A nil *Metrics records nothing.
type Metrics struct {
	boots          *prometheus.CounterVec
	installs       *prometheus.CounterVec
	installedBytes prometheus.Counter
	verifyFailures *prometheus.CounterVec
	markers        prometheus.Counter
}

// NewMetrics creates the boot metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		boots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "boots_total",
			Help:      "Completed update checks by decision.",
		}, []string{"decision"}),
		installs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "installs_total",
			Help:      "Image installations by image and result.",
		}, []string{"image", "result"}),
		installedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "installed_bytes_total",
			Help:      "Payload bytes programmed into flash.",
		}),
		verifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "verify_failures_total",
			Help:      "Flash checksum verifications that failed, by image.",
		}, []string{"image"}),
		markers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "markers_consumed_total",
			Help:      "Update markers observed and deleted.",
		}),
	}

	reg.MustRegister(m.boots, m.installs, m.installedBytes, m.verifyFailures, m.markers)
	return m
}

func (m *Metrics) observeBoot(d Decision) {
	if m == nil {
		return
	}
	m.boots.WithLabelValues(d.String()).Inc()
}

func (m *Metrics) observeInstall(image string, n int64, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.installs.WithLabelValues(image, result).Inc()
	m.installedBytes.Add(float64(n))
}

func (m *Metrics) observeVerifyFailure(image string) {
	if m == nil {
		return
	}
	m.verifyFailures.WithLabelValues(image).Inc()
}

func (m *Metrics) observeMarker() {
	if m == nil {
		return
	}
	m.markers.Inc()
}
