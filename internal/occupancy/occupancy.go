package occupancy

import (
	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
)

type Category int

// Values match the GTFS-RT VehiclePosition.OccupancyStatus enum.
const (
	// The vehicle has a relatively large percentage of seats available.
	MANY_SEATS_AVAILABLE Category = Category(gtfs.VehiclePosition_MANY_SEATS_AVAILABLE)
	// The vehicle has a relatively small percentage of seats available.
	FEW_SEATS_AVAILABLE Category = Category(gtfs.VehiclePosition_FEW_SEATS_AVAILABLE)
	// The vehicle can currently accommodate only standing passengers.
	STANDING_ROOM_ONLY Category = Category(gtfs.VehiclePosition_STANDING_ROOM_ONLY)
)

// Upper bounds (exclusive, in percent of capacity) of each category, checked in order.
// Anything above the last bound is STANDING_ROOM_ONLY.
var ThresholdMatrix = []struct {
	Below    int
	Category Category
}{
	{50, MANY_SEATS_AVAILABLE}, // less than 50% of capacity
	{85, FEW_SEATS_AVAILABLE},  // less than 85% of capacity
}

// Classify maps a passenger count onto an occupancy category for a vehicle of
// the given capacity. Negative counts are clamped to 0. A capacity <= 0 means
// nothing is known about the room left, the vehicle is reported as STANDING_ROOM_ONLY.
func Classify(passengerCount, capacity int) Category {
	if capacity <= 0 {
		return STANDING_ROOM_ONLY
	}
	if passengerCount < 0 {
		passengerCount = 0
	}
	// percent < threshold  <=>  count*100 < threshold*capacity
	for _, t := range ThresholdMatrix {
		if int64(passengerCount)*100 < int64(t.Below)*int64(capacity) {
			return t.Category
		}
	}
	return STANDING_ROOM_ONLY
}

// Percent of capacity used, for display.
func Percent(passengerCount, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	return float64(passengerCount) / float64(capacity) * 100
}

func (c Category) GtfsRt() gtfs.VehiclePosition_OccupancyStatus {
	return gtfs.VehiclePosition_OccupancyStatus(c)
}

func (c Category) String() string {
	return c.GtfsRt().String()
}
