package gtfsrt

import (
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/hove-io/gtfsrt-mqtt/internal/occupancy"
	"github.com/hove-io/gtfsrt-mqtt/internal/vehiclepositions"
)

/* ---------------------------------------------------------
// ***************** GTFS-RT FEED MESSAGES *****************
--------------------------------------------------------- */

const (
	FormatVersion = "1.0"

	// Sentinels for values the telemetry source does not provide.
	UnknownTripID = "unknown-trip-id"
)

var jsonMarshaler = protojson.MarshalOptions{Multiline: true, Indent: "  "}

// Build wraps one vehicle into its own DIFFERENTIAL feed message. The header
// timestamp is the publish time, consumers use it to judge liveness.
func Build(sample vehiclepositions.VehicleSample, category occupancy.Category,
	timestamp time.Time) *gtfs.FeedMessage {
	entity := &gtfs.FeedEntity{
		Id: proto.String(sample.ID),
		Vehicle: &gtfs.VehiclePosition{
			Trip: &gtfs.TripDescriptor{
				TripId: proto.String(UnknownTripID),
			},
			Vehicle: &gtfs.VehicleDescriptor{
				Id: proto.String(sample.ID),
			},
			Position: &gtfs.Position{
				Latitude:  proto.Float32(float32(sample.Latitude)),
				Longitude: proto.Float32(float32(sample.Longitude)),
			},
			OccupancyStatus: category.GtfsRt().Enum(),
		},
	}

	return &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String(FormatVersion),
			Incrementality:      gtfs.FeedHeader_DIFFERENTIAL.Enum(),
			Timestamp:           proto.Uint64(uint64(timestamp.Unix())),
		},
		Entity: []*gtfs.FeedEntity{entity},
	}
}

// Marshal serializes a feed message to the binary wire format.
func Marshal(fm *gtfs.FeedMessage) ([]byte, error) {
	b, err := proto.Marshal(fm)
	if err != nil {
		return nil, errors.Wrap(err, "marshal feed message")
	}
	return b, nil
}

// MarshalJSON renders the human readable mirror of a feed message.
func MarshalJSON(fm *gtfs.FeedMessage) ([]byte, error) {
	b, err := jsonMarshaler.Marshal(fm)
	if err != nil {
		return nil, errors.Wrap(err, "marshal feed message to json")
	}
	return b, nil
}

// Parse decodes a binary feed message.
func Parse(b []byte) (*gtfs.FeedMessage, error) {
	fm := new(gtfs.FeedMessage)
	if err := proto.Unmarshal(b, fm); err != nil {
		return nil, errors.Wrap(err, "unmarshal feed message")
	}
	return fm, nil
}
