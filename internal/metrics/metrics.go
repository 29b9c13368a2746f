package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the counters the gateway and score service report.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	connections      prometheus.Gauge
	wsEvents         *prometheus.CounterVec
	wsRejected       *prometheus.CounterVec
	broadcasts       *prometheus.CounterVec
	scoreSubmissions *prometheus.CounterVec
	roomsExpired     prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	auto := promauto.With(reg)
	const ns = "classgame"
	return &Metrics{
		connections: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "ws_connections",
			Help:      "Currently open websocket connections",
		}),
		wsEvents: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "ws_events_total",
			Help:      "Inbound websocket events by name",
		}, []string{"event"}),
		wsRejected: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "ws_rejected_total",
			Help:      "Inbound websocket events rejected, by name and reason",
		}, []string{"event", "reason"}),
		broadcasts: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "room_broadcasts_total",
			Help:      "Room broadcasts by outbound event",
		}, []string{"event"}),
		scoreSubmissions: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "score_submissions_total",
			Help:      "Score submissions by outcome",
		}, []string{"outcome"}),
		roomsExpired: auto.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "rooms_expired_total",
			Help:      "Idle rooms dropped by the expiry watcher",
		}),
	}
}

func (m *Metrics) ConnOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) Event(name string) {
	if m != nil {
		m.wsEvents.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) Rejected(name, reason string) {
	if m != nil {
		m.wsRejected.WithLabelValues(name, reason).Inc()
	}
}

func (m *Metrics) Broadcast(event string) {
	if m != nil {
		m.broadcasts.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) ScoreSubmitted(outcome string) {
	if m != nil {
		m.scoreSubmissions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) RoomExpired() {
	if m != nil {
		m.roomsExpired.Inc()
	}
}
