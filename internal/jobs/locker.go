package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yourusername/paper-tasks/internal/logging"
)

// ErrLocked は他の呼び出し元がロックを保持している場合のエラーです。
var ErrLocked = errors.New("jobs: lock is held")

// Locker はキー単位の排他ロックです。ttl が過ぎたロックは解放されたものとして扱われます。
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

const lockKeyPrefix = "lock:"

func lockKey(key string) string {
	return lockKeyPrefix + key
}

// 保持者のトークンが一致する場合のみ削除します。
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisClient は URL から Redis クライアントを作成します。
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

// RedisLocker は SET NX によるロックです。複数プロセス間で排他できます。
type RedisLocker struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisLocker は RedisLocker を作成します。
func NewRedisLocker(rdb *redis.Client, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{rdb: rdb, logger: logging.OrNop(logger)}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	k := lockKey(key)

	ok, err := l.rdb.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx %s: %w", k, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := releaseScript.Run(context.Background(), l.rdb, []string{k}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				l.logger.Warn("failed to release lock", zap.String("key", k), zap.Error(err))
			}
		})
	}, nil
}

type localHold struct {
	token   uint64
	expires time.Time
}

// LocalLocker はプロセス内でのみ有効なロックです。
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localHold
	next  uint64
	clock func() time.Time
}

// NewLocalLocker は LocalLocker を作成します。
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localHold), clock: time.Now}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if h, ok := l.held[key]; ok && (h.expires.IsZero() || now.Before(h.expires)) {
		return nil, ErrLocked
	}

	l.next++
	hold := localHold{token: l.next}
	if ttl > 0 {
		hold.expires = now.Add(ttl)
	}
	l.held[key] = hold

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.held[key]; ok && cur.token == hold.token {
			delete(l.held, key)
		}
	}, nil
}
