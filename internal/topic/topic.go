package topic

import (
	"fmt"
	"strings"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
)

// Sentinel segment values for fields the feed does not carry.
const (
	UnknownRoute     = ""
	UnknownDirection = "0"
	UnknownHeadsign  = "unknown-headsign"
	UnknownTrip      = "unknown-trip-id"
	UnknownNextStop  = "unknown-next-stop"
	UnknownStartTime = "00:00"
	UnknownGeohash   = "0"

	DefaultPrefix     = "/gtfsrt"
	DefaultJSONPrefix = "/json/vp"
)

// Position of each segment after the prefix.
const (
	segVp = iota
	segFeedID
	segAgencyID
	segAgencyName
	segMode
	segRouteID
	segDirectionID
	segTripHeadsign
	segTripID
	segNextStop
	segStartTime
	segVehicleID
	segGeohash1
	segGeohash2

	// SegmentCount is the number of segments following the prefix. Subscribers
	// match on positions so it never changes.
	SegmentCount
)

type segments [SegmentCount]string

var segmentReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_")

// Encoder builds vehicle position topics:
// <prefix>/vp/<feed_id>/<agency_id>/<agency_name>/<mode>/<route_id>/<direction_id>/
// <trip_headsign>/<trip_id>/<next_stop>/<start_time>/<vehicle_id>/<geohash1>/<geohash2>
type Encoder struct {
	Prefix     string
	FeedID     string
	AgencyID   string
	AgencyName string
	Mode       string
}

func NewEncoder(prefix, feedID, agencyID, agencyName, mode string) Encoder {
	return Encoder{
		Prefix:     strings.TrimRight(prefix, "/"),
		FeedID:     feedID,
		AgencyID:   agencyID,
		AgencyName: agencyName,
		Mode:       mode,
	}
}

func DefaultEncoder() Encoder {
	return NewEncoder(DefaultPrefix, "hb", "1", "1", "bus")
}

// Encode derives the topic of an entity. It only reads the entity and the
// encoder's own fields.
func (e Encoder) Encode(entity *gtfs.FeedEntity) string {
	vp := entity.GetVehicle()
	trip := vp.GetTrip()

	var s segments
	s[segVp] = "vp"
	s[segFeedID] = e.FeedID
	s[segAgencyID] = e.AgencyID
	s[segAgencyName] = e.AgencyName
	s[segMode] = e.Mode
	s[segRouteID] = orDefault(trip.GetRouteId(), UnknownRoute)
	s[segDirectionID] = UnknownDirection
	if trip != nil && trip.DirectionId != nil {
		s[segDirectionID] = fmt.Sprint(trip.GetDirectionId())
	}
	s[segTripHeadsign] = orDefault(vp.GetVehicle().GetLabel(), UnknownHeadsign)
	s[segTripID] = orDefault(trip.GetTripId(), UnknownTrip)
	s[segNextStop] = orDefault(vp.GetStopId(), UnknownNextStop)
	s[segStartTime] = startTime(trip.GetStartTime())
	s[segVehicleID] = vehicleID(entity)
	s[segGeohash1] = UnknownGeohash
	s[segGeohash2] = UnknownGeohash

	return e.Prefix + "/" + s.join()
}

// JSONTopic is the human readable mirror topic of a vehicle.
func JSONTopic(prefix, vehicleID string) string {
	return strings.TrimRight(prefix, "/") + "/" + Segment(vehicleID)
}

// Segment makes a value safe to embed as a single topic level.
func Segment(value string) string {
	return segmentReplacer.Replace(value)
}

func (s segments) join() string {
	cleaned := make([]string, len(s))
	for i, v := range s {
		cleaned[i] = Segment(v)
	}
	return strings.Join(cleaned, "/")
}

func vehicleID(entity *gtfs.FeedEntity) string {
	if id := entity.GetVehicle().GetVehicle().GetId(); id != "" {
		return id
	}
	return entity.GetId()
}

// hh:mm part of a GTFS start time (hh:mm:ss).
func startTime(value string) string {
	if len(value) < 5 {
		return UnknownStartTime
	}
	return value[:5]
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
