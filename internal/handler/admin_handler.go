package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/CarbonSense/service-estimation/internal/application"
	"github.com/CarbonSense/service-estimation/internal/platform/response"
)

// AdminHandler handles admin HTTP requests for estimate history.
type AdminHandler struct {
	service *application.AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service *application.AdminService) *AdminHandler {
	return &AdminHandler{service: service}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/api/v1/admin")
	{
		admin.GET("/estimates", h.ListEstimates)
		admin.GET("/estimates/stats", h.EstimateStats)
		admin.GET("/estimates/:id", h.GetEstimate)
	}
}

// ListEstimates handles GET /api/v1/admin/estimates.
func (h *AdminHandler) ListEstimates(c *gin.Context) {
	page, limit := parsePagination(c)

	result, err := h.service.ListEstimates(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetEstimate handles GET /api/v1/admin/estimates/:id.
func (h *AdminHandler) GetEstimate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid estimate ID")
		return
	}

	result, err := h.service.GetEstimate(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// EstimateStats handles GET /api/v1/admin/estimates/stats.
func (h *AdminHandler) EstimateStats(c *gin.Context) {
	stats, err := h.service.EstimateStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
