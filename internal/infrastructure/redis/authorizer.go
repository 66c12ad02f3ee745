package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisAuthorizer implements the engine's authorization capability against a
// per-lot bidder registry. A lot with no registry set is open access; once
// participants are registered in lot:{id}:bidders, only members may bid.
type RedisAuthorizer struct {
	client *redis.Client
}

func NewAuthorizer(client *redis.Client) *RedisAuthorizer {
	return &RedisAuthorizer{client: client}
}

func (r *RedisAuthorizer) CanBid(ctx context.Context, participantID, lotID string) (bool, error) {
	key := fmt.Sprintf("lot:%s:bidders", lotID)

	registered, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if registered == 0 {
		return true, nil
	}

	return r.client.SIsMember(ctx, key, participantID).Result()
}

// RegisterBidder adds a participant to a lot's bidder registry.
func (r *RedisAuthorizer) RegisterBidder(ctx context.Context, participantID, lotID string) error {
	key := fmt.Sprintf("lot:%s:bidders", lotID)
	return r.client.SAdd(ctx, key, participantID).Err()
}
