package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// GeoCache remembers geolocation answers per IP. Misses and errors look the same.
type GeoCache interface {
	Get(ctx context.Context, ip string) (GeoInfo, bool)
	Set(ctx context.Context, ip string, g GeoInfo)
}

// RedisGeoCache stores geo payloads under geo:<ip>.
type RedisGeoCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.SugaredLogger
}

// NewRedisClient parses url (redis://...) and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewRedisGeoCache(client *redis.Client, ttl time.Duration, logger *zap.SugaredLogger) *RedisGeoCache {
	return &RedisGeoCache{client: client, ttl: ttl, logger: logger}
}

type cachedGeo struct {
	Raw         json.RawMessage `json:"raw"`
	CountryCode string          `json:"country_code"`
}

func geoKey(ip string) string { return "geo:" + ip }

func (c *RedisGeoCache) Get(ctx context.Context, ip string) (GeoInfo, bool) {
	b, err := c.client.Get(ctx, geoKey(ip)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warnw("geo cache read failed", "ip", ip, "err", err)
		}
		return GeoInfo{}, false
	}
	var v cachedGeo
	if err := json.Unmarshal(b, &v); err != nil {
		return GeoInfo{}, false
	}
	return GeoInfo{Raw: v.Raw, CountryCode: v.CountryCode}, true
}

func (c *RedisGeoCache) Set(ctx context.Context, ip string, g GeoInfo) {
	if g.Empty() {
		return
	}
	b, err := json.Marshal(cachedGeo{Raw: g.Raw, CountryCode: g.CountryCode})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, geoKey(ip), b, c.ttl).Err(); err != nil {
		c.logger.Warnw("geo cache write failed", "ip", ip, "err", err)
	}
}
