package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/yigit/bursar/internal/pkg/cache"
)

// Lease grants exclusive use of a named job across instances for up to ttl.
// When acquired is false another holder has the lease and release is nil.
type Lease interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), acquired bool, err error)
}

// LocalLease always grants the lease. Used when only one instance runs.
type LocalLease struct{}

// Acquire always succeeds.
func (LocalLease) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

// LeaseClient is the subset of the Redis client RedisLease needs.
type LeaseClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// RedisLease takes leases with SET NX PX and releases them with a compare-and-delete.
type RedisLease struct {
	client LeaseClient
}

// NewRedisLease creates a lease backed by client.
func NewRedisLease(client LeaseClient) *RedisLease {
	return &RedisLease{client: client}
}

// Acquire tries to take the lease once without waiting.
func (l *RedisLease) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	key := cache.LockKey(name)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lease %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.client.Eval(ctx, releaseScript, []string{key}, token).Err()
	}
	return release, true, nil
}
