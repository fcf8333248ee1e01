package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-checkin/internal/models"
)

// DecisionCache keeps recent decisions in Redis so every instance behind the
// load balancer suppresses the same duplicates. Expiry is left to Redis.
type DecisionCache struct {
	Client *redis.Client
}

func NewDecisionCache(client *redis.Client) *DecisionCache {
	return &DecisionCache{Client: client}
}

func (c *DecisionCache) Get(ctx context.Context, key string) (models.Decision, bool, error) {
	raw, err := c.Client.Get(ctx, KeyDecision(key)).Bytes()
	if err == redis.Nil {
		return models.Decision{}, false, nil
	}
	if err != nil {
		return models.Decision{}, false, fmt.Errorf("failed to read decision %s: %w", key, err)
	}

	var d models.Decision
	if err := json.Unmarshal(raw, &d); err != nil {
		return models.Decision{}, false, fmt.Errorf("failed to decode decision %s: %w", key, err)
	}
	return d, true, nil
}

// Put stores the decision for ttl. Entries never outlive their window, so a
// non-positive ttl stores nothing instead of a key that never expires.
func (c *DecisionCache) Put(ctx context.Context, key string, decision models.Decision, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("failed to encode decision %s: %w", key, err)
	}
	return c.Client.Set(ctx, KeyDecision(key), raw, ttl).Err()
}

func (c *DecisionCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	redisKeys := make([]string, len(keys))
	for i, key := range keys {
		redisKeys[i] = KeyDecision(key)
	}
	return c.Client.Del(ctx, redisKeys...).Err()
}
