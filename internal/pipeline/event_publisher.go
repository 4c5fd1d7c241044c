package pipeline

import (
	"context"
	"fmt"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
)

// EventPublisher forwards every dispatched event to the message bus.
type EventPublisher struct {
	publisher drepo.Publisher
}

func NewEventPublisher(p drepo.Publisher) *EventPublisher {
	return &EventPublisher{publisher: p}
}

func (h *EventPublisher) Name() string { return "event_publisher" }

func (h *EventPublisher) OnEvent(ctx context.Context, ev *models.MarketEvent) error {
	if err := h.publisher.PublishEvent(ctx, ev); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
