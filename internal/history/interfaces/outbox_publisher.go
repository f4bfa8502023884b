package interfaces

import (
	"context"

	"paygo-cloud/internal/eventing"
	"paygo-cloud/internal/history/application"
)

// OutboxPublisher writes table rebuilt events to the outbox.
type OutboxPublisher struct {
	publisher *eventing.Publisher
}

// NewOutboxPublisher constructs an outbox publisher.
func NewOutboxPublisher(publisher *eventing.Publisher) *OutboxPublisher {
	return &OutboxPublisher{publisher: publisher}
}

// PublishTableRebuilt writes the event to the outbox.
func (p *OutboxPublisher) PublishTableRebuilt(ctx context.Context, event application.TableRebuilt) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	return p.publisher.Publish(ctx, event)
}
