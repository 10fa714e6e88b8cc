package service

import (
	"context"
	"time"

	"csv-dedupe-be/internal/pkg/logger"
	"csv-dedupe-be/pkg/events"
	pktNats "csv-dedupe-be/pkg/nats"
)

type ITelemetryService interface {
	// Track publishes a workflow event. Fire and forget: a dead bus never
	// fails the request that reported the event.
	Track(ctx context.Context, eventType string, details map[string]interface{})
}

type telemetryService struct {
	publisher *pktNats.Publisher
	logger    logger.ILogger
}

func NewTelemetryService(publisher *pktNats.Publisher, log logger.ILogger) ITelemetryService {
	return &telemetryService{
		publisher: publisher,
		logger:    log,
	}
}

func (t *telemetryService) Track(ctx context.Context, eventType string, details map[string]interface{}) {
	if t.publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := t.publisher.Publish(pubCtx, events.New(eventType, details)); err != nil {
		t.logger.Warn("TelemetryService", "Failed to publish event", map[string]interface{}{
			"event_type": eventType,
			"error":      err,
		})
	}
}
