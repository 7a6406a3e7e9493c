package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsCreated counts notifications created locally, by priority.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carepulse_notifications_created_total",
			Help: "Total number of notifications created",
		},
		[]string{"priority"},
	)

	// NotificationsDelivered counts subscriber callback deliveries.
	NotificationsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carepulse_notifications_delivered_total",
			Help: "Total number of subscriber deliveries",
		},
	)

	// SubscriberFailures counts subscriber callbacks that panicked.
	SubscriberFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carepulse_subscriber_failures_total",
			Help: "Total number of failed subscriber callbacks",
		},
	)

	// NotificationsExpired counts records evicted by the expiry sweep.
	NotificationsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carepulse_notifications_expired_total",
			Help: "Total number of notifications removed by the TTL sweep",
		},
	)

	// TransportReconnects counts scheduled live channel reconnect attempts.
	TransportReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carepulse_transport_reconnects_total",
			Help: "Total number of signaling channel reconnect attempts",
		},
	)

	// HubClients tracks websocket subscribers attached to the delivery hub.
	HubClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "carepulse_hub_clients",
			Help: "Number of connected notification hub clients",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carepulse_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
