package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RoomMetrics records Room engine activity for Prometheus scraping,
// grounded on the teacher's PrometheusCollector. A nil-safe noop variant
// lets tests and one-off Room instances skip registration entirely.
type RoomMetrics struct {
	requestsProcessed *prometheus.CounterVec
	permissionDenied  *prometheus.CounterVec
	roomsActive       prometheus.Gauge
}

func NewRoomMetrics() *RoomMetrics {
	return &RoomMetrics{
		requestsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "otto_room_requests_processed_total",
			Help: "Total number of requests a Room handled, by kind",
		}, []string{"room", "kind"}),

		permissionDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "otto_room_permission_denied_total",
			Help: "Total number of requests rejected by a permission check",
		}, []string{"room"}),

		roomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "otto_rooms_active",
			Help: "Current number of in-memory Room instances",
		}),
	}
}

// NewNoopRoomMetrics returns a RoomMetrics that records nothing and never
// touches the default Prometheus registry, for tests and bare Room use.
func NewNoopRoomMetrics() *RoomMetrics {
	return &RoomMetrics{}
}

func (m *RoomMetrics) RequestProcessed(room, kind string) {
	if m == nil || m.requestsProcessed == nil {
		return
	}
	m.requestsProcessed.WithLabelValues(room, kind).Inc()
}

func (m *RoomMetrics) PermissionDenied(room string) {
	if m == nil || m.permissionDenied == nil {
		return
	}
	m.permissionDenied.WithLabelValues(room).Inc()
}

func (m *RoomMetrics) RoomLoaded() {
	if m == nil || m.roomsActive == nil {
		return
	}
	m.roomsActive.Inc()
}

func (m *RoomMetrics) RoomUnloaded() {
	if m == nil || m.roomsActive == nil {
		return
	}
	m.roomsActive.Dec()
}
