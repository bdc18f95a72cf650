// Package rediscache is a read-through Redis cache in front of a
// ShipmentLookup. Only successful lookups are cached; Redis errors fall
// through to the wrapped lookup.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"scandesk/internal/ports"
)

const keyPrefix = "scandesk:lookup:"

type Cache struct {
	next ports.ShipmentLookup
	rdb  redis.UniversalClient
	ttl  time.Duration
	log  logrus.FieldLogger
}

var _ ports.ShipmentLookup = (*Cache)(nil)

func New(next ports.ShipmentLookup, rdb redis.UniversalClient, ttl time.Duration, log logrus.FieldLogger) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Cache{next: next, rdb: rdb, ttl: ttl, log: log}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to redis: %w", err)
	}
	return rdb, nil
}

func (c *Cache) ShipmentItems(ctx context.Context, trackingNumber string) ([]string, error) {
	key := keyPrefix + "items:" + trackingNumber
	var items []string
	if c.getObject(ctx, key, &items) {
		return items, nil
	}
	items, err := c.next.ShipmentItems(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	c.setObject(ctx, key, items)
	return items, nil
}

func (c *Cache) FindOrder(ctx context.Context, trackingNumber string) (string, error) {
	key := keyPrefix + "order:" + trackingNumber
	var orderID string
	if c.getObject(ctx, key, &orderID) {
		return orderID, nil
	}
	orderID, err := c.next.FindOrder(ctx, trackingNumber)
	if err != nil {
		return "", err
	}
	c.setObject(ctx, key, orderID)
	return orderID, nil
}

func (c *Cache) OrderItems(ctx context.Context, orderID string) ([]string, error) {
	key := keyPrefix + "order-items:" + orderID
	var items []string
	if c.getObject(ctx, key, &items) {
		return items, nil
	}
	items, err := c.next.OrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	c.setObject(ctx, key, items)
	return items, nil
}

func (c *Cache) getObject(ctx context.Context, key string, dest any) bool {
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WithField("key", key).WithError(err).Warn("lookup cache read failed")
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		c.log.WithField("key", key).WithError(err).Warn("lookup cache entry unreadable")
		return false
	}
	return true
}

func (c *Cache) setObject(ctx context.Context, key string, obj any) {
	data, err := json.Marshal(obj)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.WithField("key", key).WithError(err).Warn("lookup cache write failed")
	}
}
