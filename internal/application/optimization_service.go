package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	estimateDomain "github.com/CarbonSense/service-estimation/internal/domain/estimate"
	"github.com/CarbonSense/service-estimation/internal/optimization"
	"github.com/CarbonSense/service-estimation/internal/platform/domain"
)

// OptimizeRequest is the body of POST /optimize.
type OptimizeRequest struct {
	Domain      string   `json:"domain" binding:"required"`
	Location    string   `json:"location"`
	DistanceKm  *float64 `json:"distance_km"`
	KWh         *float64 `json:"kwh"`
	VehicleType string   `json:"vehicle_type"`
}

// OptimizeResponse wraps the plan under the key the dashboard reads.
type OptimizeResponse struct {
	Optimization *optimization.Plan `json:"optimization"`
}

// TimingPlanner is the outbound contract to the optimization planner.
type TimingPlanner interface {
	Plan(ctx context.Context, req optimization.Request) (*optimization.Plan, error)
}

// OptimizationService orchestrates the /optimize use case.
type OptimizationService struct {
	planner  TimingPlanner
	producer EventPublisher
	logger   *zap.Logger
}

// NewOptimizationService creates a new OptimizationService.
func NewOptimizationService(planner TimingPlanner, producer EventPublisher, logger *zap.Logger) *OptimizationService {
	return &OptimizationService{planner: planner, producer: producer, logger: logger}
}

// OptimizationServedEvent is published after an optimization is served.
type OptimizationServedEvent struct {
	Domain         string    `json:"domain"`
	Location       string    `json:"location"`
	OptimalTime    string    `json:"optimal_time"`
	SavingsPercent float64   `json:"savings_percent"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Optimize forecasts the best times over the next 24 hours.
func (s *OptimizationService) Optimize(ctx context.Context, req OptimizeRequest) (*OptimizeResponse, error) {
	dom, err := estimateDomain.ParseDomain(req.Domain)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	location := req.Location
	if location == "" {
		location = "UK"
	}

	planReq := optimization.Request{
		Domain:      dom,
		Location:    location,
		VehicleType: req.VehicleType,
	}
	if req.DistanceKm != nil {
		planReq.DistanceKm = *req.DistanceKm
	}
	if req.KWh != nil {
		planReq.KWh = *req.KWh
	}

	plan, err := s.planner.Plan(ctx, planReq)
	if err != nil {
		return nil, err
	}

	evt := OptimizationServedEvent{
		Domain:         dom.String(),
		Location:       location,
		OptimalTime:    plan.OptimalTime.Datetime,
		SavingsPercent: plan.PotentialSavings.Percent,
		OccurredAt:     time.Now().UTC(),
	}
	s.publishEvent(ctx, TopicEstimationEvents, EventOptimizationServed, evt)

	return &OptimizeResponse{Optimization: plan}, nil
}

func (s *OptimizationService) publishEvent(ctx context.Context, topic, eventType string, data interface{}) {
	publishEvent(ctx, s.producer, s.logger, topic, eventType, data)
}
