package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CarbonSense/service-estimation/internal/optimization"
)

type fakePlanner struct {
	plan   *optimization.Plan
	err    error
	gotReq *optimization.Request
}

func (f *fakePlanner) Plan(_ context.Context, req optimization.Request) (*optimization.Plan, error) {
	f.gotReq = &req
	if f.err != nil {
		return nil, f.err
	}
	return f.plan, nil
}

func TestOptimize_DelegatesToPlanner(t *testing.T) {
	planner := &fakePlanner{plan: &optimization.Plan{
		OptimalTime:      optimization.Slot{Datetime: "2025-03-05T03:00:00Z", Hour: 3},
		PotentialSavings: optimization.Savings{Percent: 25},
		Recommendation:   "go at 3am",
	}}
	producer := &fakeProducer{}
	svc := NewOptimizationService(planner, producer, zap.NewNop())

	resp, err := svc.Optimize(context.Background(), OptimizeRequest{
		Domain:      "transport",
		Location:    "London",
		DistanceKm:  floatPtr(20),
		VehicleType: "electric",
	})
	require.NoError(t, err)

	require.NotNil(t, planner.gotReq)
	assert.Equal(t, 20.0, planner.gotReq.DistanceKm)
	assert.Equal(t, "electric", planner.gotReq.VehicleType)
	assert.Equal(t, "go at 3am", resp.Optimization.Recommendation)

	require.Len(t, producer.events, 1)
	assert.Equal(t, EventOptimizationServed, producer.events[0].Type)
}

func TestOptimize_InvalidDomain(t *testing.T) {
	svc := NewOptimizationService(&fakePlanner{}, &fakeProducer{}, zap.NewNop())
	_, err := svc.Optimize(context.Background(), OptimizeRequest{Domain: "aviation"})
	require.Error(t, err)
}

func TestOptimize_PlannerErrorSurfaced(t *testing.T) {
	planner := &fakePlanner{err: errors.New("boom")}
	producer := &fakeProducer{}
	svc := NewOptimizationService(planner, producer, zap.NewNop())

	_, err := svc.Optimize(context.Background(), OptimizeRequest{Domain: "energy", KWh: floatPtr(2)})
	require.Error(t, err)
	assert.Empty(t, producer.events)
}
