package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/dialogue/internal/core/error"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockPollInterval = 100 * time.Millisecond

var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisLocker is a SET NX PX lock; only the holder's token can release it.
type RedisLocker struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisLocker(rdb redis.Cmdable, prefix string) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: prefix}
}

func (l *RedisLocker) Lock(ctx context.Context, sessionID string, ttl time.Duration) (model.UnlockFunc, error) {
	key := l.prefix + "lock:" + sessionID
	token := uuid.NewString()

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, errx.WrapRedis(fmt.Errorf("acquire lock: %w", err))
		}
		if ok {
			var once sync.Once
			return func(ctx context.Context) error {
				var err error
				once.Do(func() {
					err = unlockScript.Run(ctx, l.rdb, []string{key}, token).Err()
				})
				return err
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// LocalLocker serializes sessions within one process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: map[string]chan struct{}{}}
}

// Lock blocks until the session is free or ctx ends. ttl is ignored.
func (l *LocalLocker) Lock(ctx context.Context, sessionID string, _ time.Duration) (model.UnlockFunc, error) {
	for {
		l.mu.Lock()
		held, busy := l.locks[sessionID]
		if !busy {
			ch := make(chan struct{})
			l.locks[sessionID] = ch
			l.mu.Unlock()
			var once sync.Once
			return func(context.Context) error {
				once.Do(func() {
					l.mu.Lock()
					delete(l.locks, sessionID)
					l.mu.Unlock()
					close(ch)
				})
				return nil
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-held:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

var (
	_ model.SessionLocker = (*RedisLocker)(nil)
	_ model.SessionLocker = (*LocalLocker)(nil)
)
