package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"mikrotik-geo-visualizer/internal/domain"
	"mikrotik-geo-visualizer/internal/logger"
)

const cacheKeyPrefix = "mktvis:geo:"

// Provider is anything that resolves a single IP.
type Provider interface {
	Lookup(ctx context.Context, ip string) (domain.GeoRecord, bool, error)
}

// NewRedisClient returns a client with auto-reconnect and retry.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        password,
		DB:              db,
		MaxRetries:      3,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: 1 * time.Second,
	})
}

// Cache keeps found records in Redis so that several instances, and
// restarts, share lookups. Redis failures never fail a lookup.
type Cache struct {
	next  Provider
	rdb   *redis.Client
	ttl   time.Duration
	log   logger.Logger
	group singleflight.Group
}

func NewCache(next Provider, rdb *redis.Client, ttl time.Duration, log logger.Logger) *Cache {
	return &Cache{next: next, rdb: rdb, ttl: ttl, log: log}
}

type lookupResult struct {
	rec   domain.GeoRecord
	found bool
}

func (c *Cache) Lookup(ctx context.Context, ip string) (domain.GeoRecord, bool, error) {
	key := cacheKeyPrefix + ip

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rec domain.GeoRecord
		if jsonErr := json.Unmarshal(data, &rec); jsonErr == nil {
			return rec, true, nil
		}
		c.log.WithFields(map[string]any{"key": key}).Warn("discarding invalid cache entry")
	case !errors.Is(err, redis.Nil):
		c.log.WithFields(map[string]any{"key": key, "error": err.Error()}).Warn("geo cache read failed")
	}

	v, err, _ := c.group.Do(ip, func() (interface{}, error) {
		rec, found, err := c.next.Lookup(ctx, ip)
		if err != nil {
			return nil, err
		}
		if found {
			c.store(ctx, key, rec)
		}
		return lookupResult{rec: rec, found: found}, nil
	})
	if err != nil {
		return domain.GeoRecord{}, false, err
	}

	res := v.(lookupResult)
	return res.rec, res.found, nil
}

func (c *Cache) store(ctx context.Context, key string, rec domain.GeoRecord) {
	value, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, string(value), c.ttl).Err(); err != nil {
		c.log.WithFields(map[string]any{"key": key, "error": err.Error()}).Warn("geo cache write failed")
	}
}
