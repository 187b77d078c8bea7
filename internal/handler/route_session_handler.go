package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/CarbonSense/service-estimation/internal/application"
	"github.com/CarbonSense/service-estimation/internal/platform/response"
)

// RouteSessionHandler handles HTTP requests for route selection sessions.
type RouteSessionHandler struct {
	service *application.RouteSessionService
}

// NewRouteSessionHandler creates a new RouteSessionHandler.
func NewRouteSessionHandler(service *application.RouteSessionService) *RouteSessionHandler {
	return &RouteSessionHandler{service: service}
}

// RegisterRoutes registers the route session routes.
func (h *RouteSessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	sessions := r.Group("/api/v1/route-sessions")
	{
		sessions.POST("", h.Create)
		sessions.GET("/:id", h.Get)
		sessions.DELETE("/:id", h.Delete)
		sessions.PUT("/:id/origin", h.SetOrigin)
		sessions.PUT("/:id/destination", h.SetDestination)
		sessions.DELETE("/:id/origin", h.ClearOrigin)
		sessions.DELETE("/:id/destination", h.ClearDestination)
		sessions.POST("/:id/select", h.SelectSuggestion)
	}
}

// Create handles POST /api/v1/route-sessions.
func (h *RouteSessionHandler) Create(c *gin.Context) {
	result := h.service.Create(c.Request.Context())
	response.Created(c, result)
}

// Get handles GET /api/v1/route-sessions/:id.
func (h *RouteSessionHandler) Get(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	result, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Delete handles DELETE /api/v1/route-sessions/:id.
func (h *RouteSessionHandler) Delete(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	h.service.Delete(c.Request.Context(), id)
	response.NoContent(c)
}

// SetOrigin handles PUT /api/v1/route-sessions/:id/origin.
func (h *RouteSessionHandler) SetOrigin(c *gin.Context) {
	h.setPoint(c, application.FieldOrigin)
}

// SetDestination handles PUT /api/v1/route-sessions/:id/destination.
func (h *RouteSessionHandler) SetDestination(c *gin.Context) {
	h.setPoint(c, application.FieldDestination)
}

// setPoint applies a coordinate placement or queues a debounced suggestion
// search, depending on which fields the body carries.
func (h *RouteSessionHandler) setPoint(c *gin.Context, field application.Field) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	var req application.SetPointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	switch {
	case req.Lat != nil && req.Lon != nil:
		result, err := h.service.SetPoint(c.Request.Context(), id, field, *req.Lat, *req.Lon)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, result)

	case req.Query != nil:
		if err := h.service.QueueSearch(c.Request.Context(), id, field, *req.Query); err != nil {
			response.Error(c, err)
			return
		}
		result, err := h.service.Get(c.Request.Context(), id)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, result)

	default:
		response.BadRequest(c, "either lat/lon or query is required")
	}
}

// ClearOrigin handles DELETE /api/v1/route-sessions/:id/origin.
func (h *RouteSessionHandler) ClearOrigin(c *gin.Context) {
	h.clearPoint(c, application.FieldOrigin)
}

// ClearDestination handles DELETE /api/v1/route-sessions/:id/destination.
func (h *RouteSessionHandler) ClearDestination(c *gin.Context) {
	h.clearPoint(c, application.FieldDestination)
}

func (h *RouteSessionHandler) clearPoint(c *gin.Context, field application.Field) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	result, err := h.service.ClearPoint(c.Request.Context(), id, field)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// SelectSuggestion handles POST /api/v1/route-sessions/:id/select.
func (h *RouteSessionHandler) SelectSuggestion(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	var req application.SelectSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SelectSuggestion(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

func parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session ID")
		return uuid.Nil, false
	}
	return id, true
}
