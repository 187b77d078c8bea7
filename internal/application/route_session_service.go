package application

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CarbonSense/service-estimation/internal/domain/route"
	"github.com/CarbonSense/service-estimation/internal/geocoding"
	"github.com/CarbonSense/service-estimation/internal/platform/domain"
	"github.com/CarbonSense/service-estimation/internal/repository"
	"github.com/CarbonSense/service-estimation/internal/schedule"
)

// Field selects which end of a route selection an operation targets.
type Field string

const (
	FieldOrigin      Field = "origin"
	FieldDestination Field = "destination"
)

// ParseField converts a string to a Field.
func ParseField(s string) (Field, error) {
	f := Field(s)
	if f != FieldOrigin && f != FieldDestination {
		return "", domain.NewValidationError("field must be origin or destination")
	}
	return f, nil
}

// EndpointDTO is the response representation of one route endpoint.
type EndpointDTO struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Name string  `json:"name,omitempty"`
}

// RouteSessionDTO is the response representation of a route selection.
type RouteSessionDTO struct {
	ID                     uuid.UUID         `json:"id"`
	Origin                 *EndpointDTO      `json:"origin,omitempty"`
	Destination            *EndpointDTO      `json:"destination,omitempty"`
	DistanceKm             *float64          `json:"distance_km,omitempty"`
	OriginSuggestions      []geocoding.Place `json:"origin_suggestions"`
	DestinationSuggestions []geocoding.Place `json:"destination_suggestions"`
	Version                int64             `json:"version"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}

// SetPointRequest is the body of PUT /route-sessions/:id/{origin,destination}.
// Either a coordinate is placed, or a search query is queued (debounced) to
// refresh the field's suggestion list.
type SetPointRequest struct {
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
	Query *string  `json:"query"`
}

// SelectSuggestionRequest is the body of POST /route-sessions/:id/select.
// The coordinate and display name are taken verbatim from the chosen entry.
type SelectSuggestionRequest struct {
	Field       string  `json:"field" binding:"required"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name"`
}

// sessionRuntime holds the concurrency machinery of one live session: a lock
// serializing aggregate transitions, a debouncer plus sequencer per field
// for forward search, and the latest suggestion lists.
type sessionRuntime struct {
	mu          sync.Mutex
	debouncers  map[Field]*schedule.Debouncer
	searchSeqs  map[Field]*schedule.Sequencer
	suggestions map[Field][]geocoding.Place
}

func newSessionRuntime(quiescence time.Duration) *sessionRuntime {
	return &sessionRuntime{
		debouncers: map[Field]*schedule.Debouncer{
			FieldOrigin:      schedule.NewDebouncer(quiescence),
			FieldDestination: schedule.NewDebouncer(quiescence),
		},
		searchSeqs: map[Field]*schedule.Sequencer{
			FieldOrigin:      {},
			FieldDestination: {},
		},
		suggestions: map[Field][]geocoding.Place{
			FieldOrigin:      {},
			FieldDestination: {},
		},
	}
}

// RouteSessionService owns route-selection sessions: reducer transitions on
// the aggregate, debounced forward-geocode dispatch, and sequence-guarded
// reverse-geocode completion.
type RouteSessionService struct {
	store      *repository.RouteSessionStore
	geocoder   Geocoder
	logger     *zap.Logger
	quiescence time.Duration

	mu       sync.Mutex
	runtimes map[uuid.UUID]*sessionRuntime
}

// NewRouteSessionService creates a new RouteSessionService.
func NewRouteSessionService(store *repository.RouteSessionStore, geocoder Geocoder, quiescence time.Duration, logger *zap.Logger) *RouteSessionService {
	if quiescence <= 0 {
		quiescence = schedule.DefaultQuiescence
	}
	return &RouteSessionService{
		store:      store,
		geocoder:   geocoder,
		logger:     logger,
		quiescence: quiescence,
		runtimes:   make(map[uuid.UUID]*sessionRuntime),
	}
}

// Create starts an empty route selection session.
func (s *RouteSessionService) Create(ctx context.Context) *RouteSessionDTO {
	sel := route.NewRouteSelection()
	s.store.Put(sel)

	rt := s.runtime(sel.ID())
	rt.mu.Lock()
	defer rt.mu.Unlock()
	dto := toRouteSessionDTO(sel, rt)
	return &dto
}

// Get retrieves a live session.
func (s *RouteSessionService) Get(ctx context.Context, id uuid.UUID) (*RouteSessionDTO, error) {
	sel, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	rt := s.runtime(id)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	dto := toRouteSessionDTO(sel, rt)
	return &dto, nil
}

// Delete removes a session and cancels any pending dispatches.
func (s *RouteSessionService) Delete(ctx context.Context, id uuid.UUID) {
	s.mu.Lock()
	rt, ok := s.runtimes[id]
	delete(s.runtimes, id)
	s.mu.Unlock()

	if ok {
		for _, d := range rt.debouncers {
			d.Stop()
		}
	}
	s.store.Delete(id)
}

// SetPoint places a coordinate on one end of the selection and issues a
// reverse geocode for its display name; a completion arriving after the
// point moved again is discarded by the aggregate's sequence ticket.
func (s *RouteSessionService) SetPoint(ctx context.Context, id uuid.UUID, field Field, lat, lon float64) (*RouteSessionDTO, error) {
	coord, err := route.NewCoordinate(lat, lon)
	if err != nil {
		return nil, err
	}

	sel, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	rt := s.runtime(id)
	rt.mu.Lock()
	var ticket uint64
	if field == FieldOrigin {
		ticket = sel.SetOrigin(coord)
	} else {
		ticket = sel.SetDestination(coord)
	}
	dto := toRouteSessionDTO(sel, rt)
	rt.mu.Unlock()

	go s.resolvePlaceName(id, field, ticket, lat, lon)

	return &dto, nil
}

// resolvePlaceName runs the reverse geocode for a placed point. A failure
// leaves the coordinate set with the name unset.
func (s *RouteSessionService) resolvePlaceName(id uuid.UUID, field Field, ticket uint64, lat, lon float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	place, err := s.geocoder.Reverse(ctx, lat, lon)
	if err != nil {
		s.logger.Warn("reverse geocode failed",
			zap.String("session_id", id.String()),
			zap.String("field", string(field)),
			zap.Error(err),
		)
		return
	}

	sel, err := s.store.Get(id)
	if err != nil {
		return
	}

	rt := s.runtime(id)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if field == FieldOrigin {
		sel.CompleteOriginName(ticket, place.DisplayName)
	} else {
		sel.CompleteDestinationName(ticket, place.DisplayName)
	}
}

// ClearPoint removes one end of the selection.
func (s *RouteSessionService) ClearPoint(ctx context.Context, id uuid.UUID, field Field) (*RouteSessionDTO, error) {
	sel, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	rt := s.runtime(id)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if field == FieldOrigin {
		sel.ClearOrigin()
	} else {
		sel.ClearDestination()
	}
	dto := toRouteSessionDTO(sel, rt)
	return &dto, nil
}

// SelectSuggestion populates one end of the selection exactly from a chosen
// geocoder suggestion.
func (s *RouteSessionService) SelectSuggestion(ctx context.Context, id uuid.UUID, req SelectSuggestionRequest) (*RouteSessionDTO, error) {
	field, err := ParseField(req.Field)
	if err != nil {
		return nil, err
	}
	coord, err := route.NewCoordinate(req.Lat, req.Lon)
	if err != nil {
		return nil, err
	}

	sel, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	rt := s.runtime(id)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if field == FieldOrigin {
		sel.SetOriginNamed(coord, req.DisplayName)
	} else {
		sel.SetDestinationNamed(coord, req.DisplayName)
	}
	dto := toRouteSessionDTO(sel, rt)
	return &dto, nil
}

// QueueSearch schedules a debounced forward geocode for a field. The search
// dispatches only after the query has been quiet for the quiescence
// interval; a newer query supersedes a pending one, and a stale response is
// discarded by sequencing.
func (s *RouteSessionService) QueueSearch(ctx context.Context, id uuid.UUID, field Field, query string) error {
	if _, err := s.store.Get(id); err != nil {
		return err
	}

	rt := s.runtime(id)
	rt.mu.Lock()
	debouncer := rt.debouncers[field]
	seq := rt.searchSeqs[field]
	rt.mu.Unlock()

	debouncer.Schedule(func() {
		ticket := seq.Next()

		searchCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		places, err := s.geocoder.Search(searchCtx, query)
		if err != nil {
			s.logger.Warn("geocode search failed",
				zap.String("session_id", id.String()),
				zap.String("query", query),
				zap.Error(err),
			)
			places = []geocoding.Place{}
		}

		rt.mu.Lock()
		defer rt.mu.Unlock()
		if !seq.Accept(ticket) {
			return
		}
		rt.suggestions[field] = places
	})

	return nil
}

// runtime returns the session's concurrency state, creating it on first use.
func (s *RouteSessionService) runtime(id uuid.UUID) *sessionRuntime {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.runtimes[id]
	if !ok {
		rt = newSessionRuntime(s.quiescence)
		s.runtimes[id] = rt
	}
	return rt
}

// toRouteSessionDTO snapshots the aggregate; callers hold the runtime lock.
func toRouteSessionDTO(sel *route.RouteSelection, rt *sessionRuntime) RouteSessionDTO {
	dto := RouteSessionDTO{
		ID:                     sel.ID(),
		DistanceKm:             sel.DistanceKm(),
		OriginSuggestions:      rt.suggestions[FieldOrigin],
		DestinationSuggestions: rt.suggestions[FieldDestination],
		Version:                sel.Version(),
		CreatedAt:              sel.CreatedAt(),
		UpdatedAt:              sel.UpdatedAt(),
	}
	if o := sel.Origin(); o != nil {
		dto.Origin = &EndpointDTO{Lat: o.Coordinate.Lat, Lon: o.Coordinate.Lon, Name: o.Name}
	}
	if d := sel.Destination(); d != nil {
		dto.Destination = &EndpointDTO{Lat: d.Coordinate.Lat, Lon: d.Coordinate.Lon, Name: d.Name}
	}
	return dto
}
