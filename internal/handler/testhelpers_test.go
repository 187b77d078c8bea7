package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	estimateDomain "github.com/CarbonSense/service-estimation/internal/domain/estimate"
	"github.com/CarbonSense/service-estimation/internal/geocoding"
	"github.com/CarbonSense/service-estimation/internal/grid"
	"github.com/CarbonSense/service-estimation/internal/inference"
	"github.com/CarbonSense/service-estimation/internal/optimization"
	"github.com/CarbonSense/service-estimation/internal/platform/domain"
	"github.com/CarbonSense/service-estimation/internal/platform/kafka"
	"github.com/CarbonSense/service-estimation/internal/traffic"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(register func(*gin.RouterGroup)) *gin.Engine {
	router := gin.New()
	register(&router.RouterGroup)
	return router
}

func performJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

type fakeInference struct {
	result *inference.Result
	err    error
}

func (f *fakeInference) Predict(_ context.Context, _ inference.Request) (*inference.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeGrid struct {
	intensity  grid.Intensity
	comparison grid.Comparison
	weather    *grid.WeatherContext
}

func (f *fakeGrid) Intensity(_ context.Context, _ string, _ int, _ bool) grid.Intensity {
	return f.intensity
}

func (f *fakeGrid) CompareLiveVsStatic(_ context.Context, _ string) grid.Comparison {
	return f.comparison
}

func (f *fakeGrid) Weather(_ context.Context, _ string) *grid.WeatherContext {
	return f.weather
}

type fakeTraffic struct {
	impact traffic.Impact
}

func (f *fakeTraffic) Impact(_ context.Context, _ traffic.Query) traffic.Impact {
	return f.impact
}

type fakeEstimateRepo struct {
	estimates []*estimateDomain.Estimate
	byDomain  map[string]int64
	saveErr   error
}

func (f *fakeEstimateRepo) FindByID(_ context.Context, id uuid.UUID) (*estimateDomain.Estimate, error) {
	for _, e := range f.estimates {
		if e.ID() == id {
			return e, nil
		}
	}
	return nil, domain.NewNotFoundError("Estimate", id.String())
}

func (f *fakeEstimateRepo) ListRecent(_ context.Context, _, _ int) ([]*estimateDomain.Estimate, int64, error) {
	return f.estimates, int64(len(f.estimates)), nil
}

func (f *fakeEstimateRepo) CountByDomain(_ context.Context) (map[string]int64, error) {
	return f.byDomain, nil
}

func (f *fakeEstimateRepo) Save(_ context.Context, e *estimateDomain.Estimate) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.estimates = append(f.estimates, e)
	return nil
}

type fakeProducer struct {
	events []kafka.CloudEvent
}

func (f *fakeProducer) PublishEvent(_ context.Context, _ string, event kafka.CloudEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakePlanner struct {
	plan *optimization.Plan
	err  error
}

func (f *fakePlanner) Plan(_ context.Context, _ optimization.Request) (*optimization.Plan, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.plan, nil
}

type fakeGeocoder struct {
	searchResult []geocoding.Place
	searchErr    error
	reverseName  string
	reverseErr   error
}

func (f *fakeGeocoder) Search(_ context.Context, _ string) ([]geocoding.Place, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchResult, nil
}

func (f *fakeGeocoder) Reverse(_ context.Context, lat, lon float64) (geocoding.Place, error) {
	if f.reverseErr != nil {
		return geocoding.Place{}, f.reverseErr
	}
	return geocoding.Place{Lat: lat, Lon: lon, DisplayName: f.reverseName}, nil
}

func floatPtr(v float64) *float64 { return &v }
