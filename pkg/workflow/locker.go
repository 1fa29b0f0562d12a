package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another worker holds the instance.
var ErrLocked = errors.New("workflow instance is already running")

// Locker guarantees a single running instance per key across workers.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// Deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}

	return func() {
		// The caller's context may already be done by release time.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{fullKey}, token).Err()
	}, nil
}

type memoryLock struct {
	token   string
	expires time.Time
}

type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock
	now   func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]memoryLock), now: time.Now}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.locks[key]; ok && now.Before(held.expires) {
		return nil, ErrLocked
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	token := uuid.New().String()
	l.locks[key] = memoryLock{token: token, expires: now.Add(ttl)}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		// An expired holder must not drop the lock of whoever took over.
		if held, ok := l.locks[key]; ok && held.token == token {
			delete(l.locks, key)
		}
	}, nil
}
