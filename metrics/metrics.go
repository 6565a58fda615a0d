package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Connect attempt results.
const (
	ResultConnected = "connected"
	ResultTimedOut  = "timed_out"
	ResultAbandoned = "abandoned"
	ResultCanceled  = "canceled"
)

// Metrics holds the portal's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	connectAttempts  *prometheus.CounterVec
	credentialsSaved *prometheus.CounterVec
	portalActive     prometheus.Gauge
	scanNetworks     prometheus.Gauge
}

// NewMetrics registers the collectors under namespace on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Station connection attempts by result.",
		}, []string{"result"}),
		credentialsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credentials_saved_total",
			Help:      "Credential submissions by outcome.",
		}, []string{"outcome"}),
		portalActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portal_active",
			Help:      "1 while the provisioning portal is serving.",
		}),
		scanNetworks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scan_networks",
			Help:      "Networks listed on the last rendered portal page.",
		}),
	}

	m.registry.MustRegister(
		m.connectAttempts,
		m.credentialsSaved,
		m.portalActive,
		m.scanNetworks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ConnectAttempt(result string) {
	if m == nil {
		return
	}
	m.connectAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) CredentialsSaved(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.credentialsSaved.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PortalActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.portalActive.Set(1)
	} else {
		m.portalActive.Set(0)
	}
}

func (m *Metrics) ScanNetworks(n int) {
	if m == nil {
		return
	}
	m.scanNetworks.Set(float64(n))
}
