package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

// Lease grants one holder per key. Release must be called exactly once.
type Lease interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

func leaseKey(courseID string) string { return "competency:sync:" + courseID }

// MemoryLease serializes holders within one process.
type MemoryLease struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewMemoryLease() *MemoryLease {
	return &MemoryLease{held: map[string]time.Time{}, now: time.Now}
}

func (l *MemoryLease) Acquire(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if exp, ok := l.held[key]; ok && (exp.IsZero() || l.now().Before(exp)) {
		return nil, ErrLeaseHeld
	}
	exp := time.Time{}
	if ttl > 0 {
		exp = l.now().Add(ttl)
	}
	l.held[key] = exp
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			if cur, ok := l.held[key]; ok && cur.Equal(exp) {
				delete(l.held, key)
			}
			l.mu.Unlock()
		})
		return nil
	}, nil
}

// RedisLease is SET NX PX with a random token; release deletes the key only
// while it still carries that token. The holder extends the expiry every third
// of the TTL, so a long sync keeps the lease and a crashed one loses it after
// at most one TTL.
type RedisLease struct {
	rdb *goredis.Client
	log *logger.Logger
}

func NewRedisLease(rdb *goredis.Client, log *logger.Logger) *RedisLease {
	return &RedisLease{rdb: rdb, log: log.With("lease", "redis")}
}

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

var renewScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

func (l *RedisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lease: %w", err)
	}
	if !ok {
		return nil, ErrLeaseHeld
	}
	stop := keepAlive(ttl/3, func(ctx context.Context) (bool, error) {
		n, err := renewScript.Run(ctx, l.rdb, []string{key}, token, ttl.Milliseconds()).Int64()
		if err != nil {
			l.log.Warn("Lease renewal failed", "key", key, "error", err)
			return true, err
		}
		if n == 0 {
			l.log.Warn("Lease lost before release", "key", key)
		}
		return n == 1, nil
	})
	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			stop()
			err = releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
		})
		return err
	}, nil
}

// keepAlive calls renew every interval until stop is called or renew reports
// that the lease is no longer held. Renewal errors are retried on the next tick.
func keepAlive(interval time.Duration, renew func(context.Context) (bool, error)) (stop func()) {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if held, err := renew(ctx); err == nil && !held {
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// PostgresLease uses a session-level advisory lock; the connection is held
// until release.
type PostgresLease struct {
	pool *pgxpool.Pool
}

func NewPostgresLease(pool *pgxpool.Pool) *PostgresLease { return &PostgresLease{pool: pool} }

func advisoryKey(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}

func (l *PostgresLease) Acquire(ctx context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres lease: %w", err)
	}
	id := advisoryKey(key)
	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", id).Scan(&ok); err != nil {
		conn.Release()
		return nil, fmt.Errorf("postgres lease: %w", err)
	}
	if !ok {
		conn.Release()
		return nil, ErrLeaseHeld
	}
	return func(ctx context.Context) error {
		defer conn.Release()
		var unlocked bool
		if err := conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", id).Scan(&unlocked); err != nil {
			return fmt.Errorf("postgres lease release: %w", err)
		}
		if !unlocked {
			return errors.New("postgres lease release: lock was not held")
		}
		return nil
	}, nil
}
