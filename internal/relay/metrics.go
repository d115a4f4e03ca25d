package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "livewire_relay_active_sessions",
		Help: "Number of relay sessions currently active.",
	})

	publishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livewire_relay_published_total",
		Help: "Payloads admitted and published to the topic broker.",
	})

	deliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livewire_relay_delivered_total",
		Help: "Payloads enqueued for delivery to a subscriber.",
	})

	droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livewire_relay_dropped_total",
		Help: "Deliveries dropped, by reason.",
	}, []string{"reason"})

	rejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livewire_relay_rejected_total",
		Help: "Inbound payloads rejected by the ingress gate, by code.",
	}, []string{"code"})
)
