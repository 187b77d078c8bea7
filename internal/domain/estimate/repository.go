package estimate

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for estimate records.
type Repository interface {
	// FindByID retrieves an estimate by its identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Estimate, error)

	// ListRecent retrieves estimates newest-first with pagination.
	ListRecent(ctx context.Context, page, limit int) ([]*Estimate, int64, error)

	// CountByDomain returns estimate counts grouped by domain.
	CountByDomain(ctx context.Context) (map[string]int64, error)

	// Save persists a new estimate record.
	Save(ctx context.Context, e *Estimate) error
}
