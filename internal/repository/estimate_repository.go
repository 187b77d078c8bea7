package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	estimateDomain "github.com/CarbonSense/service-estimation/internal/domain/estimate"
	"github.com/CarbonSense/service-estimation/internal/platform/domain"
)

// EstimateModel is the GORM model for the estimates table.
type EstimateModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Domain       string          `gorm:"not null;size:20;index"`
	Inputs       json.RawMessage `gorm:"type:jsonb;not null"`
	BlendedMean  float64         `gorm:"not null"`
	ModelCount   int             `gorm:"not null"`
	ContextScore *float64        `gorm:""`
	CreatedAt    time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for the GORM model.
func (EstimateModel) TableName() string {
	return "estimates"
}

// GormEstimateRepository is the GORM-based implementation of
// estimate.Repository.
type GormEstimateRepository struct {
	db *gorm.DB
}

// NewGormEstimateRepository creates a new GormEstimateRepository.
func NewGormEstimateRepository(db *gorm.DB) *GormEstimateRepository {
	return &GormEstimateRepository{db: db}
}

// FindByID retrieves an estimate by its identifier.
func (r *GormEstimateRepository) FindByID(ctx context.Context, id uuid.UUID) (*estimateDomain.Estimate, error) {
	var model EstimateModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Estimate", id.String())
		}
		return nil, fmt.Errorf("failed to find estimate by ID: %w", err)
	}
	return toDomainEstimate(&model)
}

// ListRecent retrieves estimates newest-first with pagination.
func (r *GormEstimateRepository) ListRecent(ctx context.Context, page, limit int) ([]*estimateDomain.Estimate, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&EstimateModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count estimates: %w", err)
	}

	var models []EstimateModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list estimates: %w", err)
	}

	estimates := make([]*estimateDomain.Estimate, len(models))
	for i, m := range models {
		e, err := toDomainEstimate(&m)
		if err != nil {
			return nil, 0, err
		}
		estimates[i] = e
	}

	return estimates, total, nil
}

// CountByDomain returns estimate counts grouped by domain.
func (r *GormEstimateRepository) CountByDomain(ctx context.Context) (map[string]int64, error) {
	type domainCount struct {
		Domain string
		Count  int64
	}
	var results []domainCount
	if err := r.db.WithContext(ctx).Model(&EstimateModel{}).
		Select("domain, count(*) as count").
		Group("domain").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by domain: %w", err)
	}

	counts := make(map[string]int64)
	for _, dc := range results {
		counts[dc.Domain] = dc.Count
	}
	return counts, nil
}

// Save persists a new estimate record.
func (r *GormEstimateRepository) Save(ctx context.Context, e *estimateDomain.Estimate) error {
	model, err := toEstimateModel(e)
	if err != nil {
		return fmt.Errorf("failed to convert estimate to model: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save estimate: %w", err)
	}
	return nil
}

// --- Conversion Helpers ---

func toEstimateModel(e *estimateDomain.Estimate) (*EstimateModel, error) {
	inputsJSON, err := json.Marshal(e.Inputs())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal estimate inputs: %w", err)
	}

	return &EstimateModel{
		ID:           e.ID(),
		Domain:       e.Domain().String(),
		Inputs:       inputsJSON,
		BlendedMean:  e.BlendedMean(),
		ModelCount:   e.ModelCount(),
		ContextScore: e.ContextScore(),
		CreatedAt:    e.CreatedAt(),
	}, nil
}

func toDomainEstimate(m *EstimateModel) (*estimateDomain.Estimate, error) {
	var inputs estimateDomain.Inputs
	if err := json.Unmarshal(m.Inputs, &inputs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal estimate inputs: %w", err)
	}

	dom, err := estimateDomain.ParseDomain(m.Domain)
	if err != nil {
		return nil, err
	}

	return estimateDomain.ReconstructEstimate(
		m.ID,
		dom,
		inputs,
		m.BlendedMean,
		m.ModelCount,
		m.ContextScore,
		m.CreatedAt,
	), nil
}
