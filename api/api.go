package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	gtfsrtmqtt "github.com/hove-io/gtfsrt-mqtt"
	"github.com/hove-io/gtfsrt-mqtt/internal/bridge"
	"github.com/hove-io/gtfsrt-mqtt/internal/broker"
	"github.com/hove-io/gtfsrt-mqtt/internal/manager"
	"github.com/hove-io/gtfsrt-mqtt/internal/thingsboard"
)

type LoadingStatus struct {
	RefreshActive bool      `json:"refresh_active"`
	Authenticated bool      `json:"authenticated"`
	RefreshTime   string    `json:"refresh_data"`
	LastUpdate    time.Time `json:"last_update"`
	Vehicles      int       `json:"vehicles"`
}

type BrokerStatus struct {
	URL          string `json:"url,omitempty"`
	State        string `json:"state"`
	HasConnected bool   `json:"has_connected"`
}

// StatusResponse defines the object returned by the /status endpoint
type StatusResponse struct {
	Status           string        `json:"status,omitempty"`
	Version          string        `json:"version,omitempty"`
	Broker           BrokerStatus  `json:"broker"`
	VehiclePositions LoadingStatus `json:"vehicle_positions"`
}

var (
	httpDurations = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gtfsrt_mqtt",
		Subsystem: "http",
		Name:      "durations_seconds",
		Help:      "http request latency distributions.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 1.5, 15),
	},
		[]string{"handler", "code"},
	)

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gtfsrt_mqtt",
		Subsystem: "http",
		Name:      "in_flight",
		Help:      "current number of http request being served",
	},
	)
)

func StatusHandler(manager *manager.DataManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		brokerStatus := BrokerStatus{State: broker.Disconnected.String()}
		if connection := manager.GetConnection(); connection != nil {
			brokerStatus = BrokerStatus{
				URL:          connection.GetBrokerURL(),
				State:        connection.State().String(),
				HasConnected: connection.HasConnected(),
			}
		}

		var loadingStatus LoadingStatus
		if client := manager.GetThingsboardClient(); client != nil {
			loadingStatus = LoadingStatus{
				Authenticated: client.IsAuthenticated(),
				RefreshTime:   client.GetRefreshTime(),
				LastUpdate:    client.GetLastUpdate(),
				Vehicles:      client.GetVehiclePositions().Len(),
			}
		}
		// tasks only run while a broker session is up
		if sched := manager.GetScheduler(); sched != nil {
			loadingStatus.RefreshActive = sched.ActiveTasks() > 0
		}

		c.JSON(http.StatusOK, StatusResponse{
			"ok",
			gtfsrtmqtt.Version,
			brokerStatus,
			loadingStatus,
		})
	}
}

func SetupRouter(manager *manager.DataManager, r *gin.Engine) *gin.Engine {
	if r == nil {
		r = gin.New()
	}
	r.Use(logger(logrus.StandardLogger()))
	r.Use(instrumentGin())
	r.Use(gin.Recovery())
	pprof.Register(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/status", StatusHandler(manager))
	if b := manager.GetBridge(); b != nil {
		bridge.AddVehiclePositionsEntryPoint(r, b)
	}

	return r
}

// logger writes one access log entry per request.
func logger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		begin := time.Now()
		path := c.Request.URL.Path
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"ip":         c.ClientIP(),
			"latency":    time.Since(begin),
			"user-agent": c.Request.UserAgent(),
			"time":       begin.Format(time.RFC3339),
		})
		if len(c.Errors) > 0 {
			entry.Error(c.Errors.String())
		} else {
			entry.Info()
		}
	}
}

func instrumentGin() gin.HandlerFunc {
	return func(c *gin.Context) {
		begin := time.Now()
		httpInFlight.Inc()
		c.Next()
		httpInFlight.Dec()
		observer := httpDurations.With(prometheus.Labels{"handler": c.HandlerName(), "code": strconv.Itoa(c.Writer.Status())})
		observer.Observe(time.Since(begin).Seconds())
	}
}

func init() {
	prometheus.MustRegister(httpDurations)
	prometheus.MustRegister(httpInFlight)
	prometheus.MustRegister(thingsboard.TelemetryLoadingDuration)
	prometheus.MustRegister(thingsboard.TelemetryLoadingErrors)
	prometheus.MustRegister(thingsboard.TelemetryDeviceErrors)
	prometheus.MustRegister(broker.BrokerConnects)
	prometheus.MustRegister(broker.BrokerConnectionLosses)
	prometheus.MustRegister(broker.BrokerPublishedMessages)
	prometheus.MustRegister(broker.BrokerPublishErrors)
	prometheus.MustRegister(bridge.RefreshDuration)
	prometheus.MustRegister(bridge.RefreshErrors)
	prometheus.MustRegister(bridge.PublishDuration)
	prometheus.MustRegister(bridge.PublishedVehicles)
	prometheus.MustRegister(bridge.SuppressedVehicles)
	prometheus.MustRegister(bridge.EntityErrors)
	prometheus.MustRegister(bridge.SkippedPublishCycles)
}
