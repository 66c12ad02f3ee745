package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"bidding-engine/internal/domain"

	"github.com/go-redis/redis/v8"
)

// RedisLotStateCache mirrors lot lifecycle state for cheap checks by the
// transport layer (e.g. refusing WebSocket joins on closed lots) without
// touching the engine. The engine's own lot table stays authoritative.
type RedisLotStateCache struct {
	client *redis.Client
}

func NewLotStateCache(client *redis.Client) *RedisLotStateCache {
	return &RedisLotStateCache{client: client}
}

func (r *RedisLotStateCache) SetLotStatus(ctx context.Context, lotID string, status domain.LotStatus) error {
	key := fmt.Sprintf("lot:%s:status", lotID)
	return r.client.Set(ctx, key, int(status), 0).Err()
}

func (r *RedisLotStateCache) GetLotStatus(ctx context.Context, lotID string) (domain.LotStatus, error) {
	key := fmt.Sprintf("lot:%s:status", lotID)

	result, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.LotScheduled, nil
		}
		return domain.LotScheduled, err
	}

	status, err := strconv.Atoi(result)
	if err != nil {
		return domain.LotScheduled, err
	}

	return domain.LotStatus(status), nil
}
