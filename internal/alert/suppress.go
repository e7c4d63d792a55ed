package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"

	"github.com/firewatch-dev/firewatch/internal/conf"
)

// Suppressor remembers recent alerts so a camera that stays on fire does not
// message the same subscriber on every scan.
type Suppressor interface {
	// Claim reports whether an alert for the key may be sent now. A true
	// result reserves the key for the suppression TTL.
	Claim(ctx context.Context, subscriptionID, cameraID string) (bool, error)
	// Release drops a reservation, e.g. after the send failed.
	Release(ctx context.Context, subscriptionID, cameraID string) error
}

func suppressionKey(subscriptionID, cameraID string) string {
	return "firewatch:alert:" + subscriptionID + ":" + cameraID
}

// NoSuppression claims every key. Repeated scans send repeated alerts.
type NoSuppression struct{}

func (NoSuppression) Claim(context.Context, string, string) (bool, error) { return true, nil }
func (NoSuppression) Release(context.Context, string, string) error       { return nil }

// MemorySuppressor keeps reservations in process memory.
type MemorySuppressor struct {
	cache *cache.Cache
}

// NewMemorySuppressor reserves keys for ttl.
func NewMemorySuppressor(ttl time.Duration) *MemorySuppressor {
	return &MemorySuppressor{cache: cache.New(ttl, 2*ttl)}
}

func (m *MemorySuppressor) Claim(_ context.Context, subscriptionID, cameraID string) (bool, error) {
	// Add fails when the key is already present and unexpired.
	return m.cache.Add(suppressionKey(subscriptionID, cameraID), struct{}{}, cache.DefaultExpiration) == nil, nil
}

func (m *MemorySuppressor) Release(_ context.Context, subscriptionID, cameraID string) error {
	m.cache.Delete(suppressionKey(subscriptionID, cameraID))
	return nil
}

// RedisSuppressor shares reservations between processes, so overlapping
// scans from several replicas do not double-send.
type RedisSuppressor struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSuppressor reserves keys in redis for ttl.
func NewRedisSuppressor(client *redis.Client, ttl time.Duration) *RedisSuppressor {
	return &RedisSuppressor{client: client, ttl: ttl}
}

func (r *RedisSuppressor) Claim(ctx context.Context, subscriptionID, cameraID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, suppressionKey(subscriptionID, cameraID), time.Now().Unix(), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (r *RedisSuppressor) Release(ctx context.Context, subscriptionID, cameraID string) error {
	if err := r.client.Del(ctx, suppressionKey(subscriptionID, cameraID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// NewSuppressor builds the configured policy. The redis client is only used
// by the redis policy and may be nil otherwise.
func NewSuppressor(settings conf.SuppressionSettings, client *redis.Client) (Suppressor, error) {
	switch settings.Policy {
	case "", "none":
		return NoSuppression{}, nil
	case "memory":
		return NewMemorySuppressor(settings.TTL), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("alert.suppression.policy redis requires redis.addr")
		}
		return NewRedisSuppressor(client, settings.TTL), nil
	default:
		return nil, fmt.Errorf("unknown suppression policy %q", settings.Policy)
	}
}

// NewRedisClient connects to the configured redis server.
func NewRedisClient(settings *conf.RedisSettings) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     settings.Addr,
		Password: settings.Password,
		DB:       settings.DB,
	})
}
