package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CarbonSense/service-estimation/internal/application"
	"github.com/CarbonSense/service-estimation/internal/geocoding"
	"github.com/gin-gonic/gin"
)

func geocodeRouter(geocoder *fakeGeocoder) *gin.Engine {
	service := application.NewGeocodingService(geocoder, zap.NewNop())
	return newRouter(NewGeocodeHandler(service).RegisterRoutes)
}

func TestGeocodeSearch_ReturnsResults(t *testing.T) {
	router := geocodeRouter(&fakeGeocoder{
		searchResult: []geocoding.Place{
			{Lat: 51.5074, Lon: -0.1278, DisplayName: "London, Greater London, England, UK"},
			{Lat: 42.9834, Lon: -81.2497, DisplayName: "London, Ontario, Canada"},
		},
	})

	rec := performJSON(t, router, http.MethodGet, "/api/v1/geocode/search?q=london", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	results, ok := body["results"].([]interface{})
	require.True(t, ok)
	assert.Len(t, results, 2)
}

func TestGeocodeSearch_ProviderFailureDegradesToEmpty(t *testing.T) {
	router := geocodeRouter(&fakeGeocoder{searchErr: errors.New("nominatim timeout")})

	rec := performJSON(t, router, http.MethodGet, "/api/v1/geocode/search?q=london", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	results, ok := body["results"].([]interface{})
	require.True(t, ok)
	assert.Empty(t, results)
}

func TestGeocodeReverse_ResolvesPlace(t *testing.T) {
	router := geocodeRouter(&fakeGeocoder{reverseName: "Westminster, London, UK"})

	rec := performJSON(t, router, http.MethodGet, "/api/v1/geocode/reverse?lat=51.5&lon=-0.12", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Westminster, London, UK", body["display_name"])
}

func TestGeocodeReverse_RejectsNonNumericCoords(t *testing.T) {
	router := geocodeRouter(&fakeGeocoder{})

	rec := performJSON(t, router, http.MethodGet, "/api/v1/geocode/reverse?lat=abc&lon=-0.12", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGeocodeReverse_ProviderFailure(t *testing.T) {
	router := geocodeRouter(&fakeGeocoder{reverseErr: errors.New("nominatim down")})

	rec := performJSON(t, router, http.MethodGet, "/api/v1/geocode/reverse?lat=51.5&lon=-0.12", nil)

	require.Equal(t, http.StatusBadGateway, rec.Code)
}
