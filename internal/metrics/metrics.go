package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wa_gateway_webhooks_received_total",
		Help: "Total number of provider webhooks received, labelled by outcome.",
	}, []string{"outcome"})

	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wa_gateway_events_ingested_total",
		Help: "Total number of normalized events published to the bus, labelled by type.",
	}, []string{"type"})

	EventsBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wa_gateway_events_broadcast_total",
		Help: "Total number of events handed to the subscriber registry for fan-out.",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wa_gateway_events_dropped_total",
		Help: "Total number of events shed because a subscriber buffer stayed full.",
	})

	SubscribersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wa_gateway_subscribers_active",
		Help: "Currently registered stream subscribers across all instances.",
	})

	StreamsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wa_gateway_streams_opened_total",
		Help: "Total number of accepted SSE stream connections.",
	})

	AutoReplies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wa_gateway_auto_replies_total",
		Help: "Total number of auto-reply attempts, labelled by outcome.",
	}, []string{"outcome"})

	FanoutDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wa_gateway_fanout_duration_ms",
		Help:    "Latency of one broadcast fan-out cycle in milliseconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250},
	})
)
