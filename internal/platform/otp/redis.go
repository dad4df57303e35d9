package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// consumeScript applies the verify state machine in a single round trip so
// the check-attempts-then-increment sequence is atomic across instances.
// Expiry is delegated to the key TTL set at Save time: an expired key simply
// no longer exists. Returns 1 on a match, 0 on any failure.
var consumeScript = redis.NewScript(`
local fields = redis.call('HGETALL', KEYS[1])
if #fields == 0 then
	return 0
end
local code = ''
local attempts = 0
for i = 1, #fields, 2 do
	if fields[i] == 'code' then code = fields[i+1] end
	if fields[i] == 'attempts' then attempts = tonumber(fields[i+1]) end
end
if attempts >= tonumber(ARGV[2]) then
	redis.call('DEL', KEYS[1])
	return 0
end
redis.call('HINCRBY', KEYS[1], 'attempts', 1)
if code == ARGV[1] then
	redis.call('DEL', KEYS[1])
	return 1
end
return 0
`)

// RedisStore is a shared Store for multi-instance deployments: every backend
// observes the same pending code, expiry, and attempt count.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store on the given client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func key(email string) string {
	return "otp:" + email
}

func (s *RedisStore) Save(ctx context.Context, email, code string, _ time.Time) error {
	k := key(email)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, k)
	pipe.HSet(ctx, k, "code", code, "attempts", 0)
	pipe.Expire(ctx, k, TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("otp redis save: %w", err)
	}
	return nil
}

func (s *RedisStore) Consume(ctx context.Context, email, submitted string, _ time.Time) (bool, error) {
	n, err := consumeScript.Run(ctx, s.client, []string{key(email)}, submitted, MaxAttempts).Int()
	if err != nil {
		return false, fmt.Errorf("otp redis consume: %w", err)
	}
	return n == 1, nil
}
