package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Client is the subset of *redis.Client the lock needs.
type Client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

// Redis is a Locker shared by every instance pointing at the same Redis key.
type Redis struct {
	client Client
	key    string
	ttl    time.Duration
	poll   time.Duration
	log    zerolog.Logger
}

// NewRedis builds a lock on key whose hold expires after ttl.
func NewRedis(client Client, key string, ttl time.Duration, log zerolog.Logger) *Redis {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Redis{
		client: client,
		key:    key,
		ttl:    ttl,
		poll:   50 * time.Millisecond,
		log:    log.With().Str("component", "lock").Str("key", key).Logger(),
	}
}

func (r *Redis) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	t := time.NewTicker(r.poll)
	defer t.Stop()

	for {
		ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, waitErr(ctx)
			}
			return nil, fmt.Errorf("lock: acquire %s: %w", r.key, err)
		}
		if ok {
			return r.releaser(token), nil
		}
		select {
		case <-ctx.Done():
			return nil, waitErr(ctx)
		case <-t.C:
		}
	}
}

func (r *Redis) releaser(token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{r.key}, token).Err(); err != nil {
				r.log.Warn().Err(err).Msg("lock_release_failed")
			}
		})
	}
}
