package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_created_total",
		Help: "Messages persisted by the lifecycle engine.",
	})

	EventsBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_events_broadcast_total",
		Help: "Events fanned out to connected clients.",
	})

	NotificationsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_notifications_dispatched_total",
		Help: "Push notification batches handed to the dispatcher.",
	})

	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_active_connections",
		Help: "Currently connected websocket clients.",
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_rate_limited_total",
		Help: "Inbound events rejected by the rate limiter.",
	})
)
