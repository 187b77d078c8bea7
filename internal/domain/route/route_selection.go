package route

import (
	"time"

	"github.com/google/uuid"
)

// Endpoint is one end of a route selection: a coordinate plus the
// human-readable place name once reverse geocoding resolves it.
type Endpoint struct {
	Coordinate Coordinate `json:"coordinate"`
	Name       string     `json:"name,omitempty"`
}

// RouteSelection is the aggregate holding a user's start/end point choice.
// Either endpoint may be unset. The derived distance exists only while both
// endpoints are present and is recomputed on every coordinate change.
//
// All mutating methods are reducer-style transitions: they take the current
// state to the next one and keep the distance invariant in a single place.
type RouteSelection struct {
	id          uuid.UUID
	origin      *Endpoint
	destination *Endpoint
	distanceKm  *float64

	// nameSeq guards reverse-geocode completions per endpoint: a completion
	// carrying a stale ticket is discarded (last issued wins).
	originSeq      uint64
	destinationSeq uint64

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewRouteSelection creates an empty selection.
func NewRouteSelection() *RouteSelection {
	now := time.Now().UTC()
	return &RouteSelection{
		id:        uuid.New(),
		version:   1,
		createdAt: now,
		updatedAt: now,
	}
}

// ReconstructRouteSelection rebuilds a selection from stored state
// (no validation).
func ReconstructRouteSelection(
	id uuid.UUID,
	origin, destination *Endpoint,
	distanceKm *float64,
	originSeq, destinationSeq uint64,
	version int64,
	createdAt, updatedAt time.Time,
) *RouteSelection {
	return &RouteSelection{
		id:             id,
		origin:         origin,
		destination:    destination,
		distanceKm:     distanceKm,
		originSeq:      originSeq,
		destinationSeq: destinationSeq,
		version:        version,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// ID returns the selection's identifier.
func (r *RouteSelection) ID() uuid.UUID { return r.id }

// Origin returns the start endpoint, or nil if unset.
func (r *RouteSelection) Origin() *Endpoint { return r.origin }

// Destination returns the end endpoint, or nil if unset.
func (r *RouteSelection) Destination() *Endpoint { return r.destination }

// DistanceKm returns the derived distance, or nil while either end is unset.
func (r *RouteSelection) DistanceKm() *float64 { return r.distanceKm }

// Version returns the entity version.
func (r *RouteSelection) Version() int64 { return r.version }

// CreatedAt returns the creation timestamp.
func (r *RouteSelection) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (r *RouteSelection) UpdatedAt() time.Time { return r.updatedAt }

// SetOrigin places the start point and returns the sequence ticket that a
// reverse-geocode completion must present to set the place name.
func (r *RouteSelection) SetOrigin(c Coordinate) uint64 {
	r.origin = &Endpoint{Coordinate: c}
	r.originSeq++
	r.touch()
	return r.originSeq
}

// SetDestination places the end point and returns its name ticket.
func (r *RouteSelection) SetDestination(c Coordinate) uint64 {
	r.destination = &Endpoint{Coordinate: c}
	r.destinationSeq++
	r.touch()
	return r.destinationSeq
}

// SetOriginNamed places the start point together with its display name, as
// when the user picks a geocoder suggestion.
func (r *RouteSelection) SetOriginNamed(c Coordinate, name string) {
	r.origin = &Endpoint{Coordinate: c, Name: name}
	r.originSeq++
	r.touch()
}

// SetDestinationNamed places the end point together with its display name.
func (r *RouteSelection) SetDestinationNamed(c Coordinate, name string) {
	r.destination = &Endpoint{Coordinate: c, Name: name}
	r.destinationSeq++
	r.touch()
}

// CompleteOriginName records a reverse-geocoded name for the origin. It is a
// no-op when the ticket is stale (the point moved again before the lookup
// finished) or the origin was cleared.
func (r *RouteSelection) CompleteOriginName(ticket uint64, name string) bool {
	if r.origin == nil || ticket != r.originSeq {
		return false
	}
	r.origin.Name = name
	r.updatedAt = time.Now().UTC()
	return true
}

// CompleteDestinationName records a reverse-geocoded name for the
// destination, subject to the same staleness rule.
func (r *RouteSelection) CompleteDestinationName(ticket uint64, name string) bool {
	if r.destination == nil || ticket != r.destinationSeq {
		return false
	}
	r.destination.Name = name
	r.updatedAt = time.Now().UTC()
	return true
}

// ClearOrigin removes the start point; the derived distance goes with it.
func (r *RouteSelection) ClearOrigin() {
	r.origin = nil
	r.originSeq++
	r.touch()
}

// ClearDestination removes the end point.
func (r *RouteSelection) ClearDestination() {
	r.destination = nil
	r.destinationSeq++
	r.touch()
}

// Clear resets the selection to its empty state.
func (r *RouteSelection) Clear() {
	r.origin = nil
	r.destination = nil
	r.originSeq++
	r.destinationSeq++
	r.touch()
}

// touch recomputes the derived distance and bumps bookkeeping fields. Every
// transition funnels through here so the distance invariant cannot drift.
func (r *RouteSelection) touch() {
	if r.origin != nil && r.destination != nil {
		d := r.origin.Coordinate.DistanceTo(r.destination.Coordinate)
		r.distanceKm = &d
	} else {
		r.distanceKm = nil
	}
	r.version++
	r.updatedAt = time.Now().UTC()
}
