package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CarbonSense/service-estimation/internal/geocoding"
	"github.com/CarbonSense/service-estimation/internal/repository"
)

type fakeGeocoder struct {
	mu            sync.Mutex
	searchQueries []string
	searchResult  []geocoding.Place
	searchErr     error

	reverseCalls int
	reverseName  string
	reverseErr   error
	// nameFor / delayFor override the fixed name and add per-coordinate
	// latency, for exercising out-of-order completions.
	nameFor  func(lat, lon float64) string
	delayFor func(lat, lon float64) time.Duration
}

func (f *fakeGeocoder) Search(_ context.Context, query string) ([]geocoding.Place, error) {
	f.mu.Lock()
	f.searchQueries = append(f.searchQueries, query)
	f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchResult, nil
}

func (f *fakeGeocoder) Reverse(_ context.Context, lat, lon float64) (geocoding.Place, error) {
	if f.delayFor != nil {
		time.Sleep(f.delayFor(lat, lon))
	}
	f.mu.Lock()
	f.reverseCalls++
	f.mu.Unlock()
	if f.reverseErr != nil {
		return geocoding.Place{}, f.reverseErr
	}
	name := f.reverseName
	if f.nameFor != nil {
		name = f.nameFor(lat, lon)
	}
	return geocoding.Place{Lat: lat, Lon: lon, DisplayName: name}, nil
}

func (f *fakeGeocoder) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.searchQueries))
	copy(out, f.searchQueries)
	return out
}

func newTestSessionService(geocoder Geocoder, quiescence time.Duration) *RouteSessionService {
	store := repository.NewRouteSessionStore(time.Minute)
	return NewRouteSessionService(store, geocoder, quiescence, zap.NewNop())
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRouteSession_CreateAndGet(t *testing.T) {
	svc := newTestSessionService(&fakeGeocoder{}, 10*time.Millisecond)

	created := svc.Create(context.Background())
	assert.Nil(t, created.Origin)
	assert.Nil(t, created.DistanceKm)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestRouteSession_GetUnknown(t *testing.T) {
	svc := newTestSessionService(&fakeGeocoder{}, 10*time.Millisecond)
	_, err := svc.Get(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestRouteSession_SetPointResolvesName(t *testing.T) {
	geocoder := &fakeGeocoder{reverseName: "London, UK"}
	svc := newTestSessionService(geocoder, 10*time.Millisecond)

	created := svc.Create(context.Background())
	dto, err := svc.SetPoint(context.Background(), created.ID, FieldOrigin, 51.5074, -0.1278)
	require.NoError(t, err)

	// The coordinate is placed immediately; the name arrives asynchronously.
	require.NotNil(t, dto.Origin)
	assert.Equal(t, 51.5074, dto.Origin.Lat)
	assert.Empty(t, dto.Origin.Name)

	waitFor(t, func() bool {
		got, err := svc.Get(context.Background(), created.ID)
		return err == nil && got.Origin != nil && got.Origin.Name == "London, UK"
	})
}

func TestRouteSession_DistanceAppearsWithBothEnds(t *testing.T) {
	svc := newTestSessionService(&fakeGeocoder{reverseName: "x"}, 10*time.Millisecond)

	created := svc.Create(context.Background())
	dto, err := svc.SetPoint(context.Background(), created.ID, FieldOrigin, 51.5074, -0.1278)
	require.NoError(t, err)
	assert.Nil(t, dto.DistanceKm)

	dto, err = svc.SetPoint(context.Background(), created.ID, FieldDestination, 48.8566, 2.3522)
	require.NoError(t, err)
	require.NotNil(t, dto.DistanceKm)
	assert.InDelta(t, 343.5, *dto.DistanceKm, 1.0)

	dto, err = svc.ClearPoint(context.Background(), created.ID, FieldOrigin)
	require.NoError(t, err)
	assert.Nil(t, dto.DistanceKm)
	assert.NotNil(t, dto.Destination)
}

func TestRouteSession_ReverseGeocodeFailureKeepsCoordinate(t *testing.T) {
	geocoder := &fakeGeocoder{reverseErr: errors.New("429")}
	svc := newTestSessionService(geocoder, 10*time.Millisecond)

	created := svc.Create(context.Background())
	_, err := svc.SetPoint(context.Background(), created.ID, FieldOrigin, 51.5, -0.12)
	require.NoError(t, err)

	waitFor(t, func() bool {
		geocoder.mu.Lock()
		defer geocoder.mu.Unlock()
		return geocoder.reverseCalls == 1
	})

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Origin)
	assert.Equal(t, 51.5, got.Origin.Lat)
	assert.Empty(t, got.Origin.Name)
}

func TestRouteSession_StaleReverseCompletionDiscarded(t *testing.T) {
	geocoder := &fakeGeocoder{
		nameFor: func(lat, _ float64) string {
			if lat == 51.5 {
				return "First Place"
			}
			return "Second Place"
		},
		// The first lookup is slow, so it completes after the second
		// placement and must not overwrite its name slot.
		delayFor: func(lat, _ float64) time.Duration {
			if lat == 51.5 {
				return 80 * time.Millisecond
			}
			return 0
		},
	}
	svc := newTestSessionService(geocoder, 10*time.Millisecond)

	created := svc.Create(context.Background())

	_, err := svc.SetPoint(context.Background(), created.ID, FieldOrigin, 51.5, -0.12)
	require.NoError(t, err)
	_, err = svc.SetPoint(context.Background(), created.ID, FieldOrigin, 51.6, -0.2)
	require.NoError(t, err)

	waitFor(t, func() bool {
		geocoder.mu.Lock()
		defer geocoder.mu.Unlock()
		return geocoder.reverseCalls == 2
	})
	// Give the stale completion a moment to (wrongly) apply if it were going
	// to.
	time.Sleep(20 * time.Millisecond)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Origin)
	assert.Equal(t, 51.6, got.Origin.Lat)
	assert.Equal(t, "Second Place", got.Origin.Name)
}

func TestRouteSession_SelectSuggestionPopulatesExactly(t *testing.T) {
	svc := newTestSessionService(&fakeGeocoder{}, 10*time.Millisecond)

	created := svc.Create(context.Background())
	dto, err := svc.SelectSuggestion(context.Background(), created.ID, SelectSuggestionRequest{
		Field:       "destination",
		Lat:         48.8566,
		Lon:         2.3522,
		DisplayName: "Paris, Île-de-France, France",
	})
	require.NoError(t, err)

	require.NotNil(t, dto.Destination)
	assert.Equal(t, 48.8566, dto.Destination.Lat)
	assert.Equal(t, 2.3522, dto.Destination.Lon)
	assert.Equal(t, "Paris, Île-de-France, France", dto.Destination.Name)
}

func TestRouteSession_QueueSearchDebounces(t *testing.T) {
	geocoder := &fakeGeocoder{searchResult: []geocoding.Place{{DisplayName: "London", Lat: 51.5, Lon: -0.12}}}
	svc := newTestSessionService(geocoder, 40*time.Millisecond)

	created := svc.Create(context.Background())
	for _, q := range []string{"l", "lo", "lon", "london"} {
		require.NoError(t, svc.QueueSearch(context.Background(), created.ID, FieldOrigin, q))
		time.Sleep(5 * time.Millisecond)
	}

	waitFor(t, func() bool {
		got, err := svc.Get(context.Background(), created.ID)
		return err == nil && len(got.OriginSuggestions) == 1
	})

	// Only the final query was dispatched.
	assert.Equal(t, []string{"london"}, geocoder.queries())
}

func TestRouteSession_SearchFailureYieldsEmptySuggestions(t *testing.T) {
	geocoder := &fakeGeocoder{searchErr: errors.New("boom")}
	svc := newTestSessionService(geocoder, 10*time.Millisecond)

	created := svc.Create(context.Background())
	require.NoError(t, svc.QueueSearch(context.Background(), created.ID, FieldDestination, "paris"))

	waitFor(t, func() bool {
		return len(geocoder.queries()) == 1
	})

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Empty(t, got.DestinationSuggestions)
}

func TestRouteSession_DeleteStopsSession(t *testing.T) {
	svc := newTestSessionService(&fakeGeocoder{}, 10*time.Millisecond)

	created := svc.Create(context.Background())
	svc.Delete(context.Background(), created.ID)

	_, err := svc.Get(context.Background(), created.ID)
	require.Error(t, err)
}

func TestRouteSession_InvalidCoordinateRejected(t *testing.T) {
	svc := newTestSessionService(&fakeGeocoder{}, 10*time.Millisecond)

	created := svc.Create(context.Background())
	_, err := svc.SetPoint(context.Background(), created.ID, FieldOrigin, 91.0, 0)
	require.Error(t, err)
}
