package services

import (
	"context"
	"encoding/json"
	"errors"

	"bidding-engine/internal/domain"

	"github.com/go-redis/redis/v8"
)

const incrementRulesKey = "lot_increment_rules"

// IncrementRuleDao holds the tiered default increments applied when a lot is
// registered without an explicit minimum increment. Rules live in Redis so
// every instance agrees on them.
type IncrementRuleDao struct {
	client *redis.Client
	rules  *domain.IncrementRules
}

func NewIncrementRuleDao(client *redis.Client) *IncrementRuleDao {
	return &IncrementRuleDao{
		client: client,
	}
}

func (v *IncrementRuleDao) LoadRules(ctx context.Context) error {
	data, err := v.client.Get(ctx, incrementRulesKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			v.rules = &domain.IncrementRules{
				Rules: map[string]float64{
					"0-100":   5.0,
					"100-500": 10.0,
					"500+":    25.0,
				},
			}
			return v.saveRules(ctx)
		}
		return err
	}

	var rules domain.IncrementRules
	if err := json.Unmarshal([]byte(data), &rules); err != nil {
		return err
	}

	v.rules = &rules
	return nil
}

func (v *IncrementRuleDao) saveRules(ctx context.Context) error {
	data, err := json.Marshal(v.rules)
	if err != nil {
		return err
	}

	return v.client.Set(ctx, incrementRulesKey, string(data), 0).Err()
}

func (v *IncrementRuleDao) GetIncrementRule(startingPrice float64) float64 {
	if v.rules == nil {
		return 5.0 // default
	}
	if startingPrice < 100 {
		return v.rules.Rules["0-100"]
	} else if startingPrice < 500 {
		return v.rules.Rules["100-500"]
	} else {
		return v.rules.Rules["500+"]
	}
}
