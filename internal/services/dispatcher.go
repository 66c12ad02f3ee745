package services

import (
	"context"

	"bidding-engine/internal/domain"
	"bidding-engine/internal/engine"
	"bidding-engine/pkg/logger"
)

// EventDispatcher drains the engine's outbound event channel into the
// distributor. The engine side of the handoff never blocks; this goroutine
// absorbs whatever latency the publisher has, so a slow or unavailable
// downstream can delay fan-out but never bid acceptance.
type EventDispatcher struct {
	engine    *engine.Engine
	publisher domain.EventPublisher
	log       logger.Logger
}

func NewEventDispatcher(eng *engine.Engine, publisher domain.EventPublisher, log logger.Logger) *EventDispatcher {
	return &EventDispatcher{
		engine:    eng,
		publisher: publisher,
		log:       log,
	}
}

func (d *EventDispatcher) Run(ctx context.Context) {
	d.log.Info("Starting event dispatcher")

	for {
		select {
		case event := <-d.engine.Events():
			if err := d.publisher.PublishLotEvent(ctx, &event); err != nil {
				d.log.Error("Failed to publish event", "type", event.Type,
					"lot_id", event.LotID, "error", err)
			}

		case <-ctx.Done():
			d.log.Info("Event dispatcher stopped")
			return
		}
	}
}
