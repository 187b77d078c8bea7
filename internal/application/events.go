package application

import (
	"context"

	"go.uber.org/zap"

	"github.com/CarbonSense/service-estimation/internal/platform/kafka"
)

// Event topics and types.
const (
	TopicEstimationEvents = "estimation.events"

	EventEstimateComputed   = "estimation.estimate.computed"
	EventOptimizationServed = "estimation.optimization.computed"
)

// EventPublisher is the outbound contract to the event bus.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// publishEvent wraps a payload in a CloudEvent and publishes it; publishing
// problems are logged, never surfaced to the caller.
func publishEvent(ctx context.Context, producer EventPublisher, logger *zap.Logger, topic, eventType string, data interface{}) {
	cloudEvent, err := kafka.NewCloudEvent("service-estimation", eventType, data)
	if err != nil {
		logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := producer.PublishEvent(ctx, topic, cloudEvent); err != nil {
		logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
