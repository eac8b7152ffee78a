package tenantctx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ExamplesTTL is the few-shot example cache lifetime, per spec.md §4.C.
const ExamplesTTL = 3600 * time.Second

// Cache is a thin Redis wrapper for few-shot examples. A nil or unreachable
// client degrades to "no cache" rather than failing the caller, per
// spec.md §7: Redis is optional and its absence only costs latency.
type Cache struct {
	client *redis.Client
}

// NewCache wraps client. Passing a nil client is valid and makes every
// method a no-op miss, matching a deployment with no Redis configured.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// GetExamples returns cached examples for key, or (nil, false) on a miss or
// any Redis error.
func (c *Cache) GetExamples(ctx context.Context, key string) ([]Example, bool) {
	if c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var examples []Example
	if err := json.Unmarshal(raw, &examples); err != nil {
		return nil, false
	}
	return examples, true
}

// SetExamples caches examples under key for ExamplesTTL. Errors are
// swallowed: caching is best-effort.
func (c *Cache) SetExamples(ctx context.Context, key string, examples []Example) {
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(examples)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key, raw, ExamplesTTL).Err()
}

func examplesCacheKey(tenantID int64) string {
	return fmt.Sprintf("classify:fewshot:%d", tenantID)
}
