package estimate

import (
	"fmt"
	"time"

	"github.com/CarbonSense/service-estimation/internal/platform/domain"
	"github.com/google/uuid"
)

// Domain selects which emission models a request targets.
type Domain string

const (
	DomainTransport Domain = "transport"
	DomainEnergy    Domain = "energy"
)

// IsValid reports whether the domain is recognized.
func (d Domain) IsValid() bool {
	return d == DomainTransport || d == DomainEnergy
}

// String returns the string form of the domain.
func (d Domain) String() string { return string(d) }

// ParseDomain converts a string to a Domain.
func ParseDomain(s string) (Domain, error) {
	d := Domain(s)
	if !d.IsValid() {
		return "", fmt.Errorf("invalid estimate domain: %s", s)
	}
	return d, nil
}

// Inputs captures the request parameters an estimate was computed from.
type Inputs struct {
	Hour        int      `json:"hour"`
	DayOfWeek   int      `json:"day_of_week"`
	IsWeekend   int      `json:"is_weekend"`
	Location    string   `json:"location"`
	VehicleType string   `json:"vehicle_type,omitempty"`
	DistanceKm  *float64 `json:"distance_km,omitempty"`
	KWh         *float64 `json:"kwh,omitempty"`
	StartLat    *float64 `json:"start_lat,omitempty"`
	StartLon    *float64 `json:"start_lon,omitempty"`
	EndLat      *float64 `json:"end_lat,omitempty"`
	EndLon      *float64 `json:"end_lon,omitempty"`
}

// Estimate is the aggregate recording one served prediction.
type Estimate struct {
	id           uuid.UUID
	domain       Domain
	inputs       Inputs
	blendedMean  float64
	modelCount   int
	contextScore *float64
	createdAt    time.Time
}

// NewEstimate creates an estimate record after a prediction is served.
func NewEstimate(dom Domain, inputs Inputs, blendedMean float64, modelCount int, contextScore *float64) (*Estimate, error) {
	if !dom.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid estimate domain: %s", dom))
	}
	if modelCount <= 0 {
		return nil, domain.NewValidationError("estimate requires at least one model result")
	}
	if inputs.Hour < 0 || inputs.Hour > 23 {
		return nil, domain.NewValidationError(fmt.Sprintf("hour out of range: %d", inputs.Hour))
	}
	if inputs.DayOfWeek < 0 || inputs.DayOfWeek > 6 {
		return nil, domain.NewValidationError(fmt.Sprintf("day_of_week out of range: %d", inputs.DayOfWeek))
	}

	return &Estimate{
		id:           uuid.New(),
		domain:       dom,
		inputs:       inputs,
		blendedMean:  blendedMean,
		modelCount:   modelCount,
		contextScore: contextScore,
		createdAt:    time.Now().UTC(),
	}, nil
}

// ReconstructEstimate rebuilds an estimate from persistence (no validation).
func ReconstructEstimate(
	id uuid.UUID,
	dom Domain,
	inputs Inputs,
	blendedMean float64,
	modelCount int,
	contextScore *float64,
	createdAt time.Time,
) *Estimate {
	return &Estimate{
		id:           id,
		domain:       dom,
		inputs:       inputs,
		blendedMean:  blendedMean,
		modelCount:   modelCount,
		contextScore: contextScore,
		createdAt:    createdAt,
	}
}

// ID returns the estimate's identifier.
func (e *Estimate) ID() uuid.UUID { return e.id }

// Domain returns the estimate's domain.
func (e *Estimate) Domain() Domain { return e.domain }

// Inputs returns the request parameters.
func (e *Estimate) Inputs() Inputs { return e.inputs }

// BlendedMean returns the mean prediction averaged across models, in kg CO2.
func (e *Estimate) BlendedMean() float64 { return e.blendedMean }

// ModelCount returns how many model results contributed.
func (e *Estimate) ModelCount() int { return e.modelCount }

// ContextScore returns the composite favorability score, or nil.
func (e *Estimate) ContextScore() *float64 { return e.contextScore }

// CreatedAt returns the creation timestamp.
func (e *Estimate) CreatedAt() time.Time { return e.createdAt }
