package application

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/CarbonSense/service-estimation/internal/geocoding"
	"github.com/CarbonSense/service-estimation/internal/platform/domain"
)

// Geocoder is the outbound contract to the geocoding provider.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]geocoding.Place, error)
	Reverse(ctx context.Context, lat, lon float64) (geocoding.Place, error)
}

// GeocodingService proxies forward and reverse geocoding for the dashboard.
type GeocodingService struct {
	geocoder Geocoder
	logger   *zap.Logger
}

// NewGeocodingService creates a new GeocodingService.
func NewGeocodingService(geocoder Geocoder, logger *zap.Logger) *GeocodingService {
	return &GeocodingService{geocoder: geocoder, logger: logger}
}

// Search looks up place suggestions for a query. Provider failures degrade
// to an empty list; autocomplete is non-essential.
func (s *GeocodingService) Search(ctx context.Context, query string) []geocoding.Place {
	query = strings.TrimSpace(query)
	if query == "" {
		return []geocoding.Place{}
	}

	places, err := s.geocoder.Search(ctx, query)
	if err != nil {
		s.logger.Warn("geocode search failed", zap.String("query", query), zap.Error(err))
		return []geocoding.Place{}
	}
	return places
}

// Reverse resolves a coordinate to its display name.
func (s *GeocodingService) Reverse(ctx context.Context, lat, lon float64) (geocoding.Place, error) {
	place, err := s.geocoder.Reverse(ctx, lat, lon)
	if err != nil {
		s.logger.Warn("reverse geocode failed", zap.Float64("lat", lat), zap.Float64("lon", lon), zap.Error(err))
		return geocoding.Place{}, domain.NewUnavailableError("reverse geocoding unavailable")
	}
	return place, nil
}
