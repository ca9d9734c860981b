package bridge

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hove-io/gtfsrt-mqtt/internal/geofence"
	"github.com/hove-io/gtfsrt-mqtt/internal/gtfsrt"
	"github.com/hove-io/gtfsrt-mqtt/internal/occupancy"
	"github.com/hove-io/gtfsrt-mqtt/internal/scheduler"
	"github.com/hove-io/gtfsrt-mqtt/internal/topic"
	"github.com/hove-io/gtfsrt-mqtt/internal/vehiclepositions"
)

const (
	DefaultRefreshInterval = 15 * time.Second
	DefaultPublishInterval = time.Second
	DefaultCapacity        = 60

	RefreshTaskName = "refresh"
	PublishTaskName = "publish"
)

// Source provides the latest sample of each vehicle.
type Source interface {
	Refresh(ctx context.Context) error
	Snapshot() []vehiclepositions.VehicleSample
}

// Publisher hands messages to the broker.
type Publisher interface {
	Publish(topic string, payload []byte) error
	IsConnected() bool
}

type Config struct {
	RefreshInterval time.Duration
	PublishInterval time.Duration
	Capacity        int
	Geofence        geofence.BoundingBox
	Encoder         topic.Encoder
	JSONMirror      bool
	JSONTopicPrefix string
}

func DefaultConfig() Config {
	return Config{
		RefreshInterval: DefaultRefreshInterval,
		PublishInterval: DefaultPublishInterval,
		Capacity:        DefaultCapacity,
		Encoder:         topic.DefaultEncoder(),
		JSONMirror:      true,
		JSONTopicPrefix: topic.DefaultJSONPrefix,
	}
}

/* ---------------------------------------------------------------------------------
// Pipeline: refresh the telemetry cache, then publish every cached vehicle
// as its own GTFS-RT message
--------------------------------------------------------------------------------- */
type Bridge struct {
	source    Source
	publisher Publisher
	config    Config
}

func New(source Source, publisher Publisher, config Config) (*Bridge, error) {
	if source == nil || publisher == nil {
		return nil, errors.New("bridge needs a source and a publisher")
	}
	if config.Capacity <= 0 {
		return nil, errors.Errorf("vehicle capacity must be positive, got %d", config.Capacity)
	}
	if config.RefreshInterval <= 0 || config.PublishInterval <= 0 {
		return nil, errors.Errorf("intervals must be positive, got refresh=%s publish=%s",
			config.RefreshInterval, config.PublishInterval)
	}
	return &Bridge{source: source, publisher: publisher, config: config}, nil
}

// Tasks are the two periodic jobs of the pipeline.
func (b *Bridge) Tasks() []scheduler.Task {
	return []scheduler.Task{
		{Name: RefreshTaskName, Interval: b.config.RefreshInterval, Run: b.RefreshOnce},
		{Name: PublishTaskName, Interval: b.config.PublishInterval, Run: func(ctx context.Context) {
			b.PublishOnce(ctx, time.Now())
		}},
	}
}

func (b *Bridge) Scheduler() (*scheduler.Scheduler, error) {
	return scheduler.New(b.Tasks()...)
}

func (b *Bridge) GetConfig() Config {
	return b.config
}

// RefreshOnce reloads the source. Errors are logged, the previous cache stays.
func (b *Bridge) RefreshOnce(ctx context.Context) {
	begin := time.Now()
	err := b.source.Refresh(ctx)
	RefreshDuration.Observe(time.Since(begin).Seconds())
	if err != nil {
		RefreshErrors.Inc()
		logrus.Error("Refresh of vehicle positions failed: ", err)
	}
}

// PublishOnce publishes every cached vehicle outside the geofence and returns
// how many were published. Nothing is sent while the broker is unreachable.
func (b *Bridge) PublishOnce(ctx context.Context, now time.Time) int {
	if !b.publisher.IsConnected() {
		SkippedPublishCycles.Inc()
		logrus.Debug("Broker not connected, publish cycle skipped")
		return 0
	}
	begin := time.Now()
	published := 0
	for _, sample := range b.source.Snapshot() {
		if ctx.Err() != nil {
			break
		}
		if b.config.Geofence.ShouldSuppress(sample) {
			SuppressedVehicles.Inc()
			logrus.WithField("vehicle", sample.ID).Debug("Vehicle inside ", b.config.Geofence, ", not published")
			continue
		}
		if err := b.publishVehicle(sample, now); err != nil {
			EntityErrors.Inc()
			logrus.WithField("vehicle", sample.ID).Warn("Vehicle not published: ", err)
			continue
		}
		published++
	}
	PublishedVehicles.Add(float64(published))
	PublishDuration.Observe(time.Since(begin).Seconds())
	return published
}

func (b *Bridge) publishVehicle(sample vehiclepositions.VehicleSample, now time.Time) error {
	category := occupancy.Classify(sample.PassengerCount, b.config.Capacity)
	message := gtfsrt.Build(sample, category, now)
	payload, err := gtfsrt.Marshal(message)
	if err != nil {
		return err
	}
	if err := b.publisher.Publish(b.config.Encoder.Encode(message.Entity[0]), payload); err != nil {
		return err
	}

	if b.config.JSONMirror {
		mirror, err := gtfsrt.MarshalJSON(message)
		if err == nil {
			err = b.publisher.Publish(topic.JSONTopic(b.config.JSONTopicPrefix, sample.ID), mirror)
		}
		// the binary message went out, the vehicle counts as published
		if err != nil {
			logrus.WithField("vehicle", sample.ID).Warn("JSON mirror not published: ", err)
		}
	}
	return nil
}
