package projection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricMessagesProjected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reserva",
		Name:      "projection_messages_projected_total",
		Help:      "Queue messages projected and acknowledged.",
	})
	metricMessagesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reserva",
		Name:      "projection_messages_failed_total",
		Help:      "Queue messages whose projection failed and will be re-delivered.",
	})
	metricLastProjectedTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "reserva",
		Name:      "projection_last_projected_timestamp_seconds",
		Help:      "occurredAtUtc of the most recently projected event, as a Unix timestamp.",
	})
)
