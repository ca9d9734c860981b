package vehiclepositions

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// VehicleSample is the latest position and load reported by one device.
// Samples are values; a refresh supersedes them, it never edits them.
type VehicleSample struct {
	ID             string    `json:"id"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	PassengerCount int       `json:"passenger_count"`
	FetchedAt      time.Time `json:"fetched_at"`
}

func NewVehicleSample(id string, lat, lon float64, passengerCount int,
	fetchedAt time.Time) (*VehicleSample, error) {
	if id == "" {
		return nil, fmt.Errorf("missing vehicle id")
	}
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("latitude out of range: %v", lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("longitude out of range: %v", lon)
	}
	if passengerCount < 0 {
		return nil, fmt.Errorf("negative passenger count: %d", passengerCount)
	}
	return &VehicleSample{
		ID:             id,
		Latitude:       lat,
		Longitude:      lon,
		PassengerCount: passengerCount,
		FetchedAt:      fetchedAt,
	}, nil
}

/* -------------------------------------------------------------
// Cache of the most recent sample per device
------------------------------------------------------------- */
type VehiclePositions struct {
	vehiclePositions           map[string]VehicleSample
	lastVehiclePositionsUpdate time.Time
	mutex                      sync.RWMutex
}

// ReplaceVehiclePositions swaps the whole cache. The new map is built before
// the lock is taken so readers see either the old set or the new one.
func (d *VehiclePositions) ReplaceVehiclePositions(samples []VehicleSample, updatedAt time.Time) {
	positions := make(map[string]VehicleSample, len(samples))
	for _, s := range samples {
		positions[s.ID] = s
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.vehiclePositions = positions
	d.lastVehiclePositionsUpdate = updatedAt
}

// GetVehiclePositions returns a copy of the cache sorted by vehicle id.
func (d *VehiclePositions) GetVehiclePositions() []VehicleSample {
	d.mutex.RLock()
	positions := make([]VehicleSample, 0, len(d.vehiclePositions))
	for _, vp := range d.vehiclePositions {
		positions = append(positions, vp)
	}
	d.mutex.RUnlock()

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].ID < positions[j].ID
	})
	return positions
}

func (d *VehiclePositions) Len() int {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return len(d.vehiclePositions)
}

func (d *VehiclePositions) GetLastVehiclePositionsDataUpdate() time.Time {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.lastVehiclePositionsUpdate
}
