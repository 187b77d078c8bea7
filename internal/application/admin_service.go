package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	estimateDomain "github.com/CarbonSense/service-estimation/internal/domain/estimate"
	"github.com/CarbonSense/service-estimation/internal/platform/domain"
)

// EstimateDTO is the response representation of an estimate record.
type EstimateDTO struct {
	ID           uuid.UUID             `json:"id"`
	Domain       string                `json:"domain"`
	Inputs       estimateDomain.Inputs `json:"inputs"`
	BlendedMean  float64               `json:"blended_mean_kg"`
	ModelCount   int                   `json:"model_count"`
	ContextScore *float64              `json:"context_score,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

// EstimateStats summarizes served estimates by domain.
type EstimateStats struct {
	Total    int64            `json:"total"`
	ByDomain map[string]int64 `json:"by_domain"`
}

// AdminService exposes estimate history for operators.
type AdminService struct {
	repo   estimateDomain.Repository
	logger *zap.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(repo estimateDomain.Repository, logger *zap.Logger) *AdminService {
	return &AdminService{repo: repo, logger: logger}
}

// ListEstimates retrieves recent estimates with pagination.
func (s *AdminService) ListEstimates(ctx context.Context, page, limit int) (*domain.PaginatedResult[EstimateDTO], error) {
	estimates, total, err := s.repo.ListRecent(ctx, page, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]EstimateDTO, len(estimates))
	for i, e := range estimates {
		dtos[i] = toEstimateDTO(e)
	}
	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// GetEstimate retrieves one estimate record.
func (s *AdminService) GetEstimate(ctx context.Context, id uuid.UUID) (*EstimateDTO, error) {
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toEstimateDTO(e)
	return &dto, nil
}

// EstimateStats returns served-estimate counts by domain.
func (s *AdminService) EstimateStats(ctx context.Context) (*EstimateStats, error) {
	counts, err := s.repo.CountByDomain(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	return &EstimateStats{Total: total, ByDomain: counts}, nil
}

func toEstimateDTO(e *estimateDomain.Estimate) EstimateDTO {
	return EstimateDTO{
		ID:           e.ID(),
		Domain:       e.Domain().String(),
		Inputs:       e.Inputs(),
		BlendedMean:  e.BlendedMean(),
		ModelCount:   e.ModelCount(),
		ContextScore: e.ContextScore(),
		CreatedAt:    e.CreatedAt(),
	}
}
