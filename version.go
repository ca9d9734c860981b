package gtfsrtmqtt

// Version is overridden at build time:
// go build -ldflags "-X github.com/hove-io/gtfsrt-mqtt.Version=v1.2.3" ./cmd/gtfsrt-mqtt
var Version = "dev"
