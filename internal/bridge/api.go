package bridge

import (
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hove-io/gtfsrt-mqtt/internal/geofence"
	"github.com/hove-io/gtfsrt-mqtt/internal/occupancy"
	"github.com/hove-io/gtfsrt-mqtt/internal/utils"
)

// VehiclePosition is one cached vehicle as seen by the publish task.
type VehiclePosition struct {
	VehicleID        string    `json:"vehicle_id"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	PassengerCount   int       `json:"passenger_count"`
	Occupancy        string    `json:"occupancy"`
	OccupancyPercent float64   `json:"occupancy_percent"`
	Suppressed       bool      `json:"suppressed"`
	DepotDistance    float64   `json:"depot_distance,omitempty"`
	FetchedAt        time.Time `json:"fetched_at"`
}

// VehiclePositionsResponse defines the structure returned by the /vehicle_positions endpoint
type VehiclePositionsResponse struct {
	VehiclePositions []VehiclePosition `json:"vehicle_positions,omitempty"`
	Paginate         utils.Paginate    `json:"pagination,omitempty"`
	Error            string            `json:"error,omitempty"`
}

type VehiclePositionsRequestParameter struct {
	VehicleIDs []string
	Count      int
	StartPage  int
}

func AddVehiclePositionsEntryPoint(r *gin.Engine, bridge *Bridge) {
	if r == nil {
		r = gin.New()
	}
	r.GET("/vehicle_positions", VehiclePositionsHandler(bridge))
}

// VehiclePositionsHandler lists the cache, optionally filtered with
// ?vehicle_id[]=... and paginated with ?count=...&start_page=...
func VehiclePositionsHandler(bridge *Bridge) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := VehiclePositionsResponse{}
		parameter := InitVehiclePositionsRequestParameter(c)
		vehiclePositions := bridge.VehiclePositions(parameter.VehicleIDs)
		if len(vehiclePositions) == 0 {
			response.Error = "No data loaded"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
		paginate, start, end := utils.PaginateEndPoint(len(vehiclePositions), parameter.Count, parameter.StartPage)
		response.VehiclePositions = vehiclePositions[start:end]
		response.Paginate = paginate
		c.JSON(http.StatusOK, response)
	}
}

func InitVehiclePositionsRequestParameter(c *gin.Context) *VehiclePositionsRequestParameter {
	return &VehiclePositionsRequestParameter{
		VehicleIDs: c.Request.URL.Query()["vehicle_id[]"],
		Count:      utils.StringToInt(c.DefaultQuery("count", "-1"), -1),
		StartPage:  utils.StringToInt(c.DefaultQuery("start_page", "0"), 0),
	}
}

// VehiclePositions applies the classification and geofence of the publish
// task to the current snapshot. An empty filter keeps every vehicle.
func (b *Bridge) VehiclePositions(vehicleIDs []string) []VehiclePosition {
	wanted := make(map[string]bool, len(vehicleIDs))
	for _, id := range vehicleIDs {
		wanted[id] = true
	}
	result := make([]VehiclePosition, 0)
	for _, sample := range b.source.Snapshot() {
		if len(wanted) > 0 && !wanted[sample.ID] {
			continue
		}
		var depotDistance float64
		if b.config.Geofence.Enabled() {
			depotDistance = math.Round(geofence.Distance(b.config.Geofence.Center(),
				geofence.Point{Latitude: sample.Latitude, Longitude: sample.Longitude}))
		}
		result = append(result, VehiclePosition{
			VehicleID:        sample.ID,
			Latitude:         sample.Latitude,
			Longitude:        sample.Longitude,
			PassengerCount:   sample.PassengerCount,
			Occupancy:        occupancy.Classify(sample.PassengerCount, b.config.Capacity).String(),
			OccupancyPercent: occupancy.Percent(sample.PassengerCount, b.config.Capacity),
			Suppressed:       b.config.Geofence.ShouldSuppress(sample),
			DepotDistance:    depotDistance,
			FetchedAt:        sample.FetchedAt,
		})
	}
	return result
}
