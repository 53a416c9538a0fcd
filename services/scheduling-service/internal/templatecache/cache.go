package templatecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 30 * time.Second

// Cache is a read-through Redis cache of active templates per tenant and
// weekday. Redis failures degrade to reading the wrapped source.
type Cache struct {
	rdb    *redis.Client
	next   availability.TemplateSource
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func New(rdb *redis.Client, next availability.TemplateSource, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, next: next, ttl: ttl, prefix: "slotbook:templates", logger: logger}
}

func (c *Cache) key(tenantID string, weekday time.Weekday) string {
	return fmt.Sprintf("%s:%s:%d", c.prefix, tenantID, int(weekday))
}

func (c *Cache) ListActiveTemplates(ctx context.Context, tenantID string, weekday time.Weekday) ([]model.AvailabilityTemplate, error) {
	key := c.key(tenantID, weekday)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var tpls []model.AvailabilityTemplate
		if jerr := json.Unmarshal(raw, &tpls); jerr == nil {
			return tpls, nil
		}
		c.logger.Warn("template cache entry unreadable", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("template cache read failed", "err", err)
	}

	tpls, err := c.next.ListActiveTemplates(ctx, tenantID, weekday)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(tpls)
	if err == nil {
		err = c.rdb.Set(ctx, key, payload, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("template cache write failed", "err", err)
	}
	return tpls, nil
}

// Invalidate drops every weekday entry for the tenant.
func (c *Cache) Invalidate(ctx context.Context, tenantID string) error {
	keys := make([]string, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		keys = append(keys, c.key(tenantID, d))
	}
	return c.rdb.Del(ctx, keys...).Err()
}
