package geofence

import (
	"fmt"
	"math"

	"github.com/hove-io/gtfsrt-mqtt/internal/vehiclepositions"
)

type Point struct {
	Latitude  float64
	Longitude float64
}

func (p Point) String() string {
	return fmt.Sprintf("(%v, %v)", p.Latitude, p.Longitude)
}

// BoundingBox is an axis aligned latitude/longitude rectangle. Edges belong
// to the box. The zero value is a disabled box that contains nothing.
type BoundingBox struct {
	min     Point
	max     Point
	enabled bool
}

// NewBoundingBox builds the box spanned by two opposite corners given in any order.
func NewBoundingBox(a, b Point) BoundingBox {
	return BoundingBox{
		min:     Point{math.Min(a.Latitude, b.Latitude), math.Min(a.Longitude, b.Longitude)},
		max:     Point{math.Max(a.Latitude, b.Latitude), math.Max(a.Longitude, b.Longitude)},
		enabled: true,
	}
}

func (b BoundingBox) Min() Point { return b.min }
func (b BoundingBox) Max() Point { return b.max }

func (b BoundingBox) Enabled() bool { return b.enabled }

func (b BoundingBox) Contains(p Point) bool {
	if !b.enabled {
		return false
	}
	return p.Latitude >= b.min.Latitude && p.Latitude <= b.max.Latitude &&
		p.Longitude >= b.min.Longitude && p.Longitude <= b.max.Longitude
}

// ShouldSuppress reports whether a vehicle is parked inside the box and must not be published.
func (b BoundingBox) ShouldSuppress(sample vehiclepositions.VehicleSample) bool {
	return b.Contains(Point{sample.Latitude, sample.Longitude})
}

// Center of the box, the zero Point when disabled.
func (b BoundingBox) Center() Point {
	if !b.enabled {
		return Point{}
	}
	return Point{(b.min.Latitude + b.max.Latitude) / 2, (b.min.Longitude + b.max.Longitude) / 2}
}

func (b BoundingBox) String() string {
	if !b.enabled {
		return "BoundingBox(disabled)"
	}
	return fmt.Sprintf("BoundingBox(%s, %s)", b.min, b.max)
}

const earthRadius = 6378100 // meters

func hsin(theta float64) float64 {
	return math.Pow(math.Sin(theta/2), 2)
}

// Distance in meters between two points, haversine formula.
func Distance(a, b Point) float64 {
	la1 := a.Latitude * math.Pi / 180
	lo1 := a.Longitude * math.Pi / 180
	la2 := b.Latitude * math.Pi / 180
	lo2 := b.Longitude * math.Pi / 180

	h := hsin(la2-la1) + math.Cos(la1)*math.Cos(la2)*hsin(lo2-lo1)
	return 2 * earthRadius * math.Asin(math.Sqrt(h))
}
