package main

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	gtfsrtmqtt "github.com/hove-io/gtfsrt-mqtt"
	"github.com/hove-io/gtfsrt-mqtt/api"
	"github.com/hove-io/gtfsrt-mqtt/internal/bridge"
	"github.com/hove-io/gtfsrt-mqtt/internal/broker"
	"github.com/hove-io/gtfsrt-mqtt/internal/connectors"
	"github.com/hove-io/gtfsrt-mqtt/internal/geofence"
	"github.com/hove-io/gtfsrt-mqtt/internal/manager"
	"github.com/hove-io/gtfsrt-mqtt/internal/thingsboard"
	"github.com/hove-io/gtfsrt-mqtt/internal/topic"
)

var defaultDeviceIDs = []string{
	"17e40b70-5b04-11eb-98a5-133ebfea8661",
	"66df3b20-5b02-11eb-98a5-133ebfea8661",
	"14341fa0-5b00-11eb-98a5-133ebfea8661",
	"fef36ff0-5afb-11eb-98a5-133ebfea8661",
}

type Config struct {
	MQTTBrokerURL string `mapstructure:"mqtt-broker-url" validate:"required"`
	MQTTPort      int    `mapstructure:"mqtt-port" validate:"min=1,max=65535"`
	MQTTTLS       bool   `mapstructure:"mqtt-tls"`
	MQTTUser      string `mapstructure:"mqtt-user"`
	MQTTPassword  string `mapstructure:"mqtt-password"`
	MQTTClientID  string `mapstructure:"mqtt-client-id"`

	ThingsboardHostStr  string   `mapstructure:"thingsboard-host" validate:"required,url"`
	ThingsboardHost     url.URL  `validate:"-"`
	ThingsboardUsername string   `mapstructure:"thingsboard-username" validate:"required"`
	ThingsboardPassword string   `mapstructure:"thingsboard-password"`
	DeviceIDs           []string `mapstructure:"device-ids" validate:"min=1,dive,required"`

	RefreshInterval   time.Duration `mapstructure:"refresh-interval" validate:"gt=0"`
	PublishInterval   time.Duration `mapstructure:"publish-interval" validate:"gt=0"`
	ConnectionTimeout time.Duration `mapstructure:"connection-timeout" validate:"gt=0"`
	VehicleCapacity   int           `mapstructure:"vehicle-capacity" validate:"gt=0"`

	GeofenceEnabled bool    `mapstructure:"geofence-enabled"`
	DepotCornerALat float64 `mapstructure:"depot-corner-a-lat" validate:"min=-90,max=90"`
	DepotCornerALon float64 `mapstructure:"depot-corner-a-lon" validate:"min=-180,max=180"`
	DepotCornerBLat float64 `mapstructure:"depot-corner-b-lat" validate:"min=-90,max=90"`
	DepotCornerBLon float64 `mapstructure:"depot-corner-b-lon" validate:"min=-180,max=180"`

	TopicPrefix     string `mapstructure:"topic-prefix" validate:"required"`
	FeedID          string `mapstructure:"feed-id" validate:"required"`
	AgencyID        string `mapstructure:"agency-id"`
	AgencyName      string `mapstructure:"agency-name"`
	Mode            string `mapstructure:"mode"`
	JSONMirror      bool   `mapstructure:"json-mirror"`
	JSONTopicPrefix string `mapstructure:"json-topic-prefix" validate:"required_with=JSONMirror"`

	APIListen string `mapstructure:"api-listen"`
	LogLevel  string `mapstructure:"log-level" validate:"oneof=trace debug info warn warning error fatal panic"`
	JSONLog   bool   `mapstructure:"json-log"`
}

func GetConfig() (Config, error) {
	pflag.String("mqtt-broker-url", "", "host name of the MQTT broker")
	pflag.Int("mqtt-port", broker.DefaultPort, "port of the MQTT broker")
	pflag.Bool("mqtt-tls", true, "connect to the broker over TLS")
	pflag.String("mqtt-user", "", "user for the MQTT broker")
	pflag.String("mqtt-password", "", "password for the MQTT broker")
	pflag.String("mqtt-client-id", "", "MQTT client id, generated when empty")

	pflag.String("thingsboard-host", "",
		"base url of the ThingsBoard API \nexample: https://thingsboard.example.org/api")
	pflag.String("thingsboard-username", "", "user for ThingsBoard")
	pflag.String("thingsboard-password", "", "password for ThingsBoard")
	pflag.StringSlice("device-ids", defaultDeviceIDs, "ThingsBoard ids of the tracked devices")

	pflag.Duration("refresh-interval", bridge.DefaultRefreshInterval, "time between refresh of the telemetry")
	pflag.Duration("publish-interval", bridge.DefaultPublishInterval, "time between two publications of the positions")
	pflag.Duration("connection-timeout", 10*time.Second, "timeout of the http and MQTT connections")
	pflag.Int("vehicle-capacity", bridge.DefaultCapacity, "number of passengers a vehicle can carry")

	pflag.Bool("geofence-enabled", true, "do not publish vehicles parked in the depot")
	pflag.Float64("depot-corner-a-lat", 48.64936, "latitude of a corner of the depot")
	pflag.Float64("depot-corner-a-lon", 8.81578, "longitude of a corner of the depot")
	pflag.Float64("depot-corner-b-lat", 48.64853, "latitude of the opposite corner of the depot")
	pflag.Float64("depot-corner-b-lon", 8.81885, "longitude of the opposite corner of the depot")

	pflag.String("topic-prefix", topic.DefaultPrefix, "prefix of the GTFS-RT topics")
	pflag.String("feed-id", "hb", "feed id segment of the topics")
	pflag.String("agency-id", "1", "agency id segment of the topics")
	pflag.String("agency-name", "1", "agency name segment of the topics")
	pflag.String("mode", "bus", "mode segment of the topics")
	pflag.Bool("json-mirror", true, "also publish every message as JSON")
	pflag.String("json-topic-prefix", topic.DefaultJSONPrefix, "prefix of the JSON topics")

	pflag.String("api-listen", ":8080", "listen address of the status API, empty to disable it")
	pflag.Bool("json-log", false, "enable json logging")
	pflag.String("log-level", "info", "log level: debug, info, warn, error")
	pflag.Parse()

	var config Config
	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return config, errors.Wrap(err, "Impossible to parse flags")
	}
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := viper.Unmarshal(&config); err != nil {
		return config, errors.Wrap(err, "Unmarshalling of flag failed")
	}
	if err := checkConfig(&config); err != nil {
		return config, err
	}
	return config, nil
}

// checkConfig validates the configuration and resolves the ThingsBoard url.
func checkConfig(config *Config) error {
	config.LogLevel = strings.ToLower(config.LogLevel)
	if err := validator.New().Struct(config); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	uri, err := url.Parse(config.ThingsboardHostStr)
	if err != nil {
		return errors.Wrapf(err, "Unable to parse thingsboard url: %s", config.ThingsboardHostStr)
	}
	config.ThingsboardHost = *uri
	return nil
}

func newBrokerConfig(config *Config) (*broker.Config, error) {
	return broker.NewConfig(config.MQTTBrokerURL,
		broker.WithPort(config.MQTTPort),
		broker.WithTLS(config.MQTTTLS, nil),
		broker.WithCredentials(config.MQTTUser, config.MQTTPassword),
		broker.WithClientID(config.MQTTClientID),
		broker.WithTimeouts(config.ConnectionTimeout, config.ConnectionTimeout),
	)
}

func newBridgeConfig(config *Config) bridge.Config {
	bridgeConfig := bridge.Config{
		RefreshInterval: config.RefreshInterval,
		PublishInterval: config.PublishInterval,
		Capacity:        config.VehicleCapacity,
		Encoder: topic.NewEncoder(config.TopicPrefix, config.FeedID, config.AgencyID,
			config.AgencyName, config.Mode),
		JSONMirror:      config.JSONMirror,
		JSONTopicPrefix: config.JSONTopicPrefix,
	}
	if config.GeofenceEnabled {
		bridgeConfig.Geofence = geofence.NewBoundingBox(
			geofence.Point{Latitude: config.DepotCornerALat, Longitude: config.DepotCornerALon},
			geofence.Point{Latitude: config.DepotCornerBLat, Longitude: config.DepotCornerBLon},
		)
	}
	return bridgeConfig
}

func main() {
	config, err := GetConfig()
	if err != nil {
		logrus.Fatalf("Impossible to load configuration at startup: %s", err)
	}

	initLog(config.JSONLog, config.LogLevel)
	logrus.Info("gtfsrt-mqtt ", gtfsrtmqtt.Version)
	manager := &manager.DataManager{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Telemetry source
	connector := connectors.NewConnector(config.ThingsboardHost, config.ThingsboardUsername,
		config.ThingsboardPassword, config.DeviceIDs, config.RefreshInterval, config.ConnectionTimeout)
	client := thingsboard.NewClient(connector)
	manager.SetThingsboardClient(client)

	// Broker session
	brokerConfig, err := newBrokerConfig(&config)
	if err != nil {
		logrus.Fatalf("Invalid broker configuration: %s", err)
	}
	connection := broker.NewConnection(*brokerConfig)
	manager.SetConnection(connection)

	// Pipeline
	bridgeConfig := newBridgeConfig(&config)
	logrus.Info("Depot geofence: ", bridgeConfig.Geofence)
	b, err := bridge.New(client, connection, bridgeConfig)
	if err != nil {
		logrus.Fatalf("Invalid pipeline configuration: %s", err)
	}
	manager.SetBridge(b)
	sched, err := b.Scheduler()
	if err != nil {
		logrus.Fatalf("Invalid pipeline configuration: %s", err)
	}
	manager.SetScheduler(sched)

	// Status API
	if config.APIListen != "" {
		router := api.SetupRouter(manager, nil)
		go StatusAPI(router, config.APIListen)
	}

	// first publish tick has data
	b.RefreshOnce(ctx)

	if err := connection.Run(ctx, sched); err != nil {
		logrus.Fatalf("Impossible to connect to the broker: %s", err)
	}
	logrus.Info("Shutdown complete")
}

func StatusAPI(router *gin.Engine, address string) {
	if err := router.Run(address); err != nil && err != http.ErrServerClosed {
		logrus.Fatalf("Impossible to start gin: %s", err)
	}
}

func initLog(jsonLog bool, logLevel string) {
	if jsonLog {
		// Log as JSON instead of the default ASCII formatter.
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	logrus.SetOutput(os.Stdout)
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.SetLevel(level)
	broker.InitLog()
}
