package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thudocloud/food-ordering-platform/internal/domain/orders"
	"github.com/thudocloud/food-ordering-platform/internal/ports"
	"github.com/thudocloud/food-ordering-platform/internal/shared/config"
	"github.com/thudocloud/food-ordering-platform/internal/shared/logger"
)

// keyPrefix namespaces order snapshots in Redis.
const keyPrefix = "order:"

// Cache is a short-TTL read-through cache of order snapshots keyed by order
// number. Every method is best-effort: a Redis outage degrades to store-only
// reads and writes, never a failed request.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

var _ ports.OrderCache = (*Cache)(nil)

// Connect builds the client and pings it once. A failed ping is logged but
// not fatal; go-redis re-establishes the connection on later commands.
func Connect(ctx context.Context, cfg *config.Config, log *logger.Logger) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr: net.JoinHostPort(cfg.Redis.Host, strconv.Itoa(cfg.Redis.Port)),
	})

	cache := &Cache{
		rdb:    rdb,
		ttl:    time.Duration(cfg.Redis.TTLSeconds) * time.Second,
		logger: log,
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn(ctx, "cache_unavailable", "Redis ping failed; continuing with store-only reads", map[string]any{"error": err.Error()})
	} else {
		log.Info(ctx, "cache_connected", "Connected to Redis", nil)
	}

	return cache
}

// Get returns the cached snapshot for an order number, or a miss.
func (c *Cache) Get(ctx context.Context, number string) (*orders.Order, bool) {
	payload, err := c.rdb.Get(ctx, keyPrefix+number).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn(ctx, "cache_read_failed", "Cache read failed; falling back to store", map[string]any{"error": err.Error()})
		return nil, false
	}

	var snapshot snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		// unreadable entry; drop it so the next read refills cleanly
		c.Invalidate(ctx, number)
		return nil, false
	}
	return snapshot.toOrder(), true
}

// Put stores the snapshot with the standard TTL.
func (c *Cache) Put(ctx context.Context, number string, order *orders.Order) {
	payload, err := json.Marshal(newSnapshot(order))
	if err != nil {
		c.logger.Error(ctx, "cache_encode_failed", "Failed to encode order snapshot", err)
		return
	}
	if err := c.rdb.SetEx(ctx, keyPrefix+number, payload, c.ttl).Err(); err != nil {
		c.logger.Warn(ctx, "cache_write_failed", "Cache write failed", map[string]any{"error": err.Error()})
	}
}

// Invalidate removes the snapshot. Called synchronously after every store
// commit that mutates the order, before the mutation's caller returns.
func (c *Cache) Invalidate(ctx context.Context, number string) {
	if err := c.rdb.Del(ctx, keyPrefix+number).Err(); err != nil {
		c.logger.Warn(ctx, "cache_invalidate_failed", "Cache invalidation failed", map[string]any{"error": err.Error()})
	}
}

// Ping verifies connectivity for health probes.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
