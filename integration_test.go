//go:build integration

package main_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CarbonSense/service-estimation/internal/application"
	"github.com/CarbonSense/service-estimation/internal/events"
	"github.com/CarbonSense/service-estimation/internal/grid"
	"github.com/CarbonSense/service-estimation/internal/repository"
)

// TestGridSignalObserved_UpdatesIntensity verifies that a grid.intensity.observed
// event published to grid.signals is picked up by the consumer and served from
// the grid service cache on the next lookup.
func TestGridSignalObserved_UpdatesIntensity(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	modelServer := startModelServer(t)
	stack := setupEstimationStack(t, infra.DB, infra.KafkaBrokers, modelServer.URL)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	// Start the consumer.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	// Publish an observed reading for India.
	evt := events.GridIntensityObservedEvent{
		Region:           "India",
		IntensityGCO2KWh: 650.5,
		Source:           "field_collector",
		ObservedAt:       time.Now().UTC(),
	}
	publishTestEvent(t, infra.KafkaBrokers, events.TopicGridSignals,
		"grid-collector", events.EventGridIntensityObserved, evt)

	// Assert: the observed value wins over the temporal model.
	require.Eventually(t, func() bool {
		reading := stack.Grid.Intensity(context.Background(), "India", 12, false)
		return reading.Method == grid.MethodObserved && reading.GCO2PerKWh == 650.5
	}, 15*time.Second, 200*time.Millisecond, "observed intensity never became visible")

	reading := stack.Grid.Intensity(context.Background(), "India", 12, false)
	assert.Equal(t, "field_collector", reading.Source)
	assert.Equal(t, "India", reading.Location)
}

// TestPredict_PersistsEstimateAndPublishesEvent verifies the full prediction
// flow: the stub model server answers, the estimate lands in Postgres, and an
// estimation.estimate.computed event is published.
func TestPredict_PersistsEstimateAndPublishesEvent(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	modelServer := startModelServer(t)
	stack := setupEstimationStack(t, infra.DB, infra.KafkaBrokers, modelServer.URL)
	defer stack.CleanupProducer()

	kwh := 5.0
	hour := 14
	resp, err := stack.Estimation.Predict(context.Background(), application.PredictRequest{
		Domain:   "energy",
		KWh:      &kwh,
		Hour:     &hour,
		Location: "India",
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "success", resp.Status)
	assert.Contains(t, resp.Predictions, "bayesian")

	// Assert: one estimate row persisted.
	var count int64
	require.NoError(t, infra.DB.Model(&repository.EstimateModel{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var model repository.EstimateModel
	require.NoError(t, infra.DB.First(&model).Error)
	assert.Equal(t, "energy", model.Domain)
	assert.InDelta(t, 2.0, model.BlendedMean, 0.2)
	assert.Equal(t, 4, model.ModelCount)

	// Assert: EstimateComputedEvent on estimation.events.
	ce := consumeOneEvent(t, infra.KafkaBrokers, application.TopicEstimationEvents,
		application.EventEstimateComputed, 15*time.Second)

	var computed application.EstimateComputedEvent
	require.NoError(t, ce.ParseData(&computed))
	assert.Equal(t, "energy", computed.Domain)
	assert.Equal(t, "India", computed.Location)
	assert.Equal(t, 4, computed.ModelCount)
}
