package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ClientMetrics records Client gateway activity for Prometheus scraping,
// grounded on the teacher's PrometheusCollector and mirroring the shape of
// services.RoomMetrics. A nil-safe noop variant lets tests skip registration
// entirely.
type ClientMetrics struct {
	clientsConnected prometheus.Gauge
}

func NewClientMetrics() *ClientMetrics {
	return &ClientMetrics{
		clientsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "otto_clients_connected",
			Help: "Current number of locally-joined client sockets",
		}),
	}
}

// NewNoopClientMetrics returns a ClientMetrics that records nothing and
// never touches the default Prometheus registry, for tests and one-off
// ClientManager instances.
func NewNoopClientMetrics() *ClientMetrics {
	return &ClientMetrics{}
}

func (m *ClientMetrics) ClientJoined() {
	if m == nil || m.clientsConnected == nil {
		return
	}
	m.clientsConnected.Inc()
}

func (m *ClientMetrics) ClientLeft() {
	if m == nil || m.clientsConnected == nil {
		return
	}
	m.clientsConnected.Dec()
}
