package irc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registry holds the engine's metrics. The status server exposes it.
	Registry = prometheus.NewRegistry()

	linesReceived = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircbot_lines_received_total",
			Help: "Complete protocol lines read, by server",
		},
		[]string{"server"},
	)

	linesDropped = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircbot_lines_dropped_total",
			Help: "Lines dropped because no command could be parsed, by server",
		},
		[]string{"server"},
	)

	linesSent = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircbot_lines_sent_total",
			Help: "Lines written to the transport, by server",
		},
		[]string{"server"},
	)

	eventsDispatched = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircbot_events_dispatched_total",
			Help: "Events emitted to listeners, by command",
		},
		[]string{"command"},
	)

	listenerFailures = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircbot_listener_failures_total",
			Help: "Listener errors and panics, by listener tag",
		},
		[]string{"tag"},
	)

	hookFailures = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "ircbot_hook_failures_total",
			Help: "Pre-emit hook errors and panics",
		},
	)

	connected = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ircbot_connected",
			Help: "1 while the server connection is active",
		},
		[]string{"server"},
	)
)
