package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/CarbonSense/service-estimation/internal/platform/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	// TopicGridSignals carries carbon intensity observations from external collectors.
	TopicGridSignals = "grid.signals"

	// EventGridIntensityObserved is a single region/intensity reading.
	EventGridIntensityObserved = "grid.intensity.observed"
)

// GridIntensityObservedEvent is the payload of a grid.intensity.observed event.
type GridIntensityObservedEvent struct {
	Region           string    `json:"region"`
	IntensityGCO2KWh float64   `json:"intensity_gco2_kwh"`
	Source           string    `json:"source"`
	ObservedAt       time.Time `json:"observed_at"`
}

// GridObserver receives intensity readings taken outside the request path.
type GridObserver interface {
	RecordObservation(region string, gco2PerKWh float64, source string)
}

// GridSignalConsumer listens to grid intensity signals and feeds them into the
// grid service cache so predictions can use them without an upstream call.
type GridSignalConsumer struct {
	consumer *kafka.Consumer
	grid     GridObserver
	logger   *zap.Logger
}

// NewGridSignalConsumer creates a new GridSignalConsumer.
func NewGridSignalConsumer(
	brokers []string,
	groupID string,
	grid GridObserver,
	logger *zap.Logger,
) *GridSignalConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, TopicGridSignals, logger)
	return &GridSignalConsumer{
		consumer: consumer,
		grid:     grid,
		logger:   logger,
	}
}

// Start begins consuming grid signals. This blocks until the context is cancelled.
func (c *GridSignalConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *GridSignalConsumer) Close() error {
	return c.consumer.Close()
}

func (c *GridSignalConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var cloudEvent kafka.CloudEvent
	if err := json.Unmarshal(msg.Value, &cloudEvent); err != nil {
		c.logger.Error("failed to parse cloud event from grid signals topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case EventGridIntensityObserved:
		return c.handleIntensityObserved(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled grid signal type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *GridSignalConsumer) handleIntensityObserved(_ context.Context, cloudEvent kafka.CloudEvent) error {
	var evt GridIntensityObservedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse GridIntensityObservedEvent data",
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	if evt.Region == "" || evt.IntensityGCO2KWh <= 0 {
		c.logger.Warn("discarding grid observation with missing region or non-positive intensity",
			zap.String("region", evt.Region),
			zap.Float64("intensity_gco2_kwh", evt.IntensityGCO2KWh),
		)
		return nil
	}

	c.grid.RecordObservation(evt.Region, evt.IntensityGCO2KWh, evt.Source)
	c.logger.Info("recorded grid intensity observation",
		zap.String("region", evt.Region),
		zap.Float64("intensity_gco2_kwh", evt.IntensityGCO2KWh),
		zap.String("source", evt.Source),
	)
	return nil
}
