// Package redislock serialises settlements of a teacher across processes with a redis lease.
package redislock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/lecturepay/core"
)

const (
	keyPrefix  = "lecturepay:lock:"
	retryEvery = 50 * time.Millisecond
)

// release deletes the key only if it still holds our token: an expired lease may belong to someone else by now.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ core.Locker = (*Locker)(nil)

// Connect opens a client for conf and checks that redis answers.
func Connect(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

// New returns a Locker whose leases expire after ttl if never released.
func New(rdb *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{rdb: rdb, ttl: ttl}
}

// Lock polls until the lease on scope is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, scope string) (func(), error) {
	key := keyPrefix + scope
	token := uuid.New().String()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "locking %s", scope)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryEvery):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			// on failure the lease simply expires
			_ = release.Run(ctx, l.rdb, []string{key}, token).Err()
		})
	}, nil
}
