package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLocked is returned by a Locker when the key is already held.
var ErrLocked = errors.New("lock is held by another dispatch")

// Locker guards a campaign against concurrent dispatches. Acquire either
// returns a release func or ErrLocked.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

func lockKey(campaignID uint) string {
	return fmt.Sprintf("dispatch:campaign:%d", campaignID)
}

// RedisLocker holds locks as SET NX keys with a TTL so a crashed instance
// cannot block a campaign forever. Each acquisition writes its own owner id
// and release only deletes the key while it still carries that id.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		// The request context may already be cancelled when the dispatch ends.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		releaseScript.Run(releaseCtx, l.client, []string{key}, owner)
	}, nil
}

// LocalLocker is the single instance fallback used when Redis is disabled.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), now: time.Now}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expires, ok := l.held[key]; ok && now.Before(expires) {
		return nil, ErrLocked
	}
	expires := now.Add(ttl)
	l.held[key] = expires

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if held, ok := l.held[key]; ok && held.Equal(expires) {
			delete(l.held, key)
		}
	}, nil
}
