// Package metrics exposes the server's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors updated by the broadcast path and
// the registries.
type Metrics struct {
	MessagesAccepted  prometheus.Counter
	MessagesDelivered prometheus.Counter
	DeliveryFailures  prometheus.Counter
	ConnectedClients  prometheus.Gauge
	RegisteredUsers   prometheus.Gauge
}

// New registers the collectors with reg (the default registerer when
// nil) and returns them.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		MessagesAccepted: f.NewCounter(prometheus.CounterOpts{
			Name: "chatd_messages_accepted_total",
			Help: "Messages dequeued by the broadcast worker and appended to the log.",
		}),
		MessagesDelivered: f.NewCounter(prometheus.CounterOpts{
			Name: "chatd_messages_delivered_total",
			Help: "Per-recipient deliveries that completed successfully.",
		}),
		DeliveryFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "chatd_delivery_failures_total",
			Help: "Per-recipient deliveries that failed and tore the session down.",
		}),
		ConnectedClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "chatd_connected_clients",
			Help: "Sessions currently present in the client registry.",
		}),
		RegisteredUsers: f.NewGauge(prometheus.GaugeOpts{
			Name: "chatd_registered_users",
			Help: "Users present in the directory.",
		}),
	}
}
