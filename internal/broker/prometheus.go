package broker

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	BrokerConnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gtfsrt_mqtt",
		Subsystem: "broker",
		Name:      "connects",
		Help:      "number of sessions established with the broker, reconnections included",
	})

	BrokerConnectionLosses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gtfsrt_mqtt",
		Subsystem: "broker",
		Name:      "connection_losses",
		Help:      "number of times the broker session was lost",
	})

	BrokerPublishedMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gtfsrt_mqtt",
		Subsystem: "broker",
		Name:      "published_messages",
		Help:      "number of messages handed to the broker",
	})

	BrokerPublishErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gtfsrt_mqtt",
		Subsystem: "broker",
		Name:      "publish_errors",
		Help:      "number of messages that could not be published",
	})
)
