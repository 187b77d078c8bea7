package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/CarbonSense/service-estimation/internal/application"
	"github.com/CarbonSense/service-estimation/internal/platform/response"
)

// PredictionHandler handles HTTP requests for predictions and optimization.
type PredictionHandler struct {
	estimation   *application.EstimationService
	optimization *application.OptimizationService
}

// NewPredictionHandler creates a new PredictionHandler.
func NewPredictionHandler(estimation *application.EstimationService, optimization *application.OptimizationService) *PredictionHandler {
	return &PredictionHandler{estimation: estimation, optimization: optimization}
}

// RegisterRoutes registers the prediction routes. The dashboard calls
// /predict and /optimize at the root, not under /api/v1.
func (h *PredictionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/predict", h.Predict)
	r.POST("/optimize", h.Optimize)
}

// Predict handles POST /predict.
func (h *PredictionHandler) Predict(c *gin.Context) {
	var req application.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.estimation.Predict(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Optimize handles POST /optimize.
func (h *PredictionHandler) Optimize(c *gin.Context) {
	var req application.OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.optimization.Optimize(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
