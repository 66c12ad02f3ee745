package redis

import (
	"context"
	"encoding/json"

	"bidding-engine/internal/domain"

	"github.com/go-redis/redis/v8"
)

const lotEventsChannel = "lot_events"

type EventPublisherImpl struct {
	client *redis.Client
}

func NewEventPublisher(client *redis.Client) *EventPublisherImpl {
	return &EventPublisherImpl{client: client}
}

func (r *EventPublisherImpl) PublishLotEvent(ctx context.Context, event *domain.LotEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return r.client.Publish(ctx, lotEventsChannel, payload).Err()
}
