package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roomsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quiz",
		Subsystem: "realtime",
		Name:      "rooms",
		Help:      "Number of session rooms with at least one connection.",
	})
	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quiz",
		Subsystem: "realtime",
		Name:      "connections",
		Help:      "Number of connections joined to a room.",
	})
	messagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quiz",
		Subsystem: "realtime",
		Name:      "messages_total",
		Help:      "Frames queued to connections, by event.",
	}, []string{"event"})
	droppedClients = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quiz",
		Subsystem: "realtime",
		Name:      "dropped_clients_total",
		Help:      "Connections disconnected because their send queue was full.",
	})
)
