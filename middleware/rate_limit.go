package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"safeclicker/metrics"
	"safeclicker/utils"
)

// DispatchRateLimiter limits how often one principal may trigger campaign
// dispatches. storage may be nil for in-memory counting.
func DispatchRateLimiter(max int, storage fiber.Storage) fiber.Handler {
	if max < 1 {
		max = 1
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			p := CurrentPrincipal(c)
			return utils.GenerateRateLimitKey(p.ID, c.Params("id"), c.Route().Path)
		},
		LimitReached: func(c *fiber.Ctx) error {
			metrics.HttpRateLimitRejectionsTotal.Inc()
			utils.LogEvent("rate_limit_hit", map[string]interface{}{
				"user_id":    CurrentPrincipal(c).ID,
				"endpoint":   c.Path(),
				"ip":         c.IP(),
				"user_agent": c.Get("User-Agent"),
			})
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success":     false,
				"error":       "Too many dispatch requests. Please wait before sending again.",
				"retry_after": "1 minute",
			})
		},
		Storage: storage,
	})
}

// RedisStorage implements fiber.Storage for Redis
type RedisStorage struct {
	client *redis.Client
}

func NewRedisStorage(client *redis.Client) *RedisStorage {
	return &RedisStorage{client: client}
}

// Get returns nil, nil for a missing key as fiber.Storage requires.
func (r *RedisStorage) Get(key string) ([]byte, error) {
	val, err := r.client.Get(context.Background(), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (r *RedisStorage) Set(key string, val []byte, exp time.Duration) error {
	if len(key) == 0 || len(val) == 0 {
		return nil
	}
	return r.client.Set(context.Background(), key, val, exp).Err()
}

func (r *RedisStorage) Delete(key string) error {
	return r.client.Del(context.Background(), key).Err()
}

func (r *RedisStorage) Reset() error {
	return r.client.FlushDB(context.Background()).Err()
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
