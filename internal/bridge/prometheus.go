package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RefreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gtfsrt_mqtt",
		Subsystem: "bridge",
		Name:      "refresh_durations_seconds",
		Help:      "duration of the refresh task.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 1.5, 15),
	})

	RefreshErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gtfsrt_mqtt",
		Subsystem: "bridge",
		Name:      "refresh_errors",
		Help:      "number of refresh cycles that failed",
	})

	PublishDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gtfsrt_mqtt",
		Subsystem: "bridge",
		Name:      "publish_durations_seconds",
		Help:      "duration of the publish task.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 1.5, 15),
	})

	PublishedVehicles = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gtfsrt_mqtt",
		Subsystem: "bridge",
		Name:      "published_vehicles",
		Help:      "number of vehicle positions published",
	})

	SuppressedVehicles = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gtfsrt_mqtt",
		Subsystem: "bridge",
		Name:      "suppressed_vehicles",
		Help:      "number of vehicle positions dropped by the depot geofence",
	})

	EntityErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gtfsrt_mqtt",
		Subsystem: "bridge",
		Name:      "entity_errors",
		Help:      "number of vehicle positions that could not be encoded or published",
	})

	SkippedPublishCycles = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gtfsrt_mqtt",
		Subsystem: "bridge",
		Name:      "skipped_publish_cycles",
		Help:      "number of publish cycles skipped while the broker was not connected",
	})
)
