package thingsboard

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TelemetryLoadingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gtfsrt_mqtt",
		Subsystem: "telemetry",
		Name:      "load_durations_seconds",
		Help:      "duration of a full refresh of the vehicles telemetry.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 1.5, 15),
	})

	TelemetryLoadingErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gtfsrt_mqtt",
		Subsystem: "telemetry",
		Name:      "loading_errors",
		Help:      "number of refresh cycles abandoned before updating the cache",
	})

	TelemetryDeviceErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gtfsrt_mqtt",
		Subsystem: "telemetry",
		Name:      "device_errors",
		Help:      "number of devices skipped during a refresh, by kind of failure",
	},
		[]string{"kind"},
	)
)
