package metrics

import (
	stdhttp "net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveConnections tracks currently open socket connections.
	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "messaging_active_connections",
		Help: "Active websocket connections",
	})

	// MessagesSent counts successfully persisted messages.
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messaging_messages_sent_total",
		Help: "Messages accepted and persisted",
	})

	// MessagesDelivered counts receive_message pushes to live connections.
	MessagesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messaging_messages_delivered_total",
		Help: "Messages pushed to online receiver connections",
	})

	// SendFailures counts sends rejected at the persistence step.
	SendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messaging_send_failures_total",
		Help: "Sends that failed persistence",
	})

	// ReadReceipts counts read transitions propagated to senders.
	ReadReceipts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messaging_read_receipts_total",
		Help: "Messages transitioned to read",
	})
)

// Init registers all collectors with the default registry.
func Init() {
	prometheus.MustRegister(
		ActiveConnections,
		MessagesSent,
		MessagesDelivered,
		SendFailures,
		ReadReceipts,
	)
}

// Handler returns the scrape endpoint handler.
func Handler() stdhttp.Handler {
	return promhttp.Handler()
}
