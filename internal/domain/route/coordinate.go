package route

import (
	"fmt"

	"github.com/CarbonSense/service-estimation/internal/geo"
	"github.com/CarbonSense/service-estimation/internal/platform/domain"
)

// Coordinate is a WGS84 point value object.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewCoordinate validates latitude and longitude ranges.
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	if !geo.ValidLatitude(lat) {
		return Coordinate{}, domain.NewValidationError(fmt.Sprintf("latitude out of range: %v", lat))
	}
	if !geo.ValidLongitude(lon) {
		return Coordinate{}, domain.NewValidationError(fmt.Sprintf("longitude out of range: %v", lon))
	}
	return Coordinate{Lat: lat, Lon: lon}, nil
}

// DistanceTo returns the great-circle distance to another coordinate in km.
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	return geo.Distance(c.Lat, c.Lon, other.Lat, other.Lon)
}
