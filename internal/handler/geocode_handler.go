package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/CarbonSense/service-estimation/internal/application"
	"github.com/CarbonSense/service-estimation/internal/platform/response"
)

// GeocodeHandler proxies forward and reverse geocoding for the dashboard.
type GeocodeHandler struct {
	service *application.GeocodingService
}

// NewGeocodeHandler creates a new GeocodeHandler.
func NewGeocodeHandler(service *application.GeocodingService) *GeocodeHandler {
	return &GeocodeHandler{service: service}
}

// RegisterRoutes registers the geocoding routes.
func (h *GeocodeHandler) RegisterRoutes(r *gin.RouterGroup) {
	geocode := r.Group("/api/v1/geocode")
	{
		geocode.GET("/search", h.Search)
		geocode.GET("/reverse", h.Reverse)
	}
}

// Search handles GET /api/v1/geocode/search?q=. Failures degrade to an
// empty list.
func (h *GeocodeHandler) Search(c *gin.Context) {
	query := c.Query("q")
	places := h.service.Search(c.Request.Context(), query)
	response.Success(c, gin.H{"results": places})
}

// Reverse handles GET /api/v1/geocode/reverse?lat=&lon=.
func (h *GeocodeHandler) Reverse(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		response.BadRequest(c, "lat must be a number")
		return
	}
	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil {
		response.BadRequest(c, "lon must be a number")
		return
	}

	place, err := h.service.Reverse(c.Request.Context(), lat, lon)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, place)
}
