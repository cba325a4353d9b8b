package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smartdepot/storefront/internal/domain"
)

const (
	defaultBaseTTL = 15 * time.Minute
	maxJitter      = 5 * time.Minute
	// versionTTL outlives any cart entry, so a lost version can only make a
	// pending fill fail, never succeed.
	versionTTL = time.Hour
)

// fillScript writes KEYS[1] only while KEYS[2] still holds the version seen at lookup.
var fillScript = redis.NewScript(`
if (redis.call('GET', KEYS[2]) or '0') ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

type RedisCache struct {
	client  redis.UniversalClient
	baseTTL time.Duration
}

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: defaultBaseTTL,
	}
}

// Lookup reads the entry and the user's version in one round trip.
func (r *RedisCache) Lookup(ctx context.Context, userID int64) (*domain.Cart, int64, error) {
	vals, err := r.client.MGet(ctx, cartKey(userID), versionKey(userID)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis mget: %w", err)
	}

	version, err := parseVersion(vals[1])
	if err != nil {
		return nil, 0, err
	}

	raw, ok := vals[0].(string)
	if !ok {
		return nil, version, ErrCacheMiss
	}
	var cart domain.Cart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		return nil, version, fmt.Errorf("decode cached cart %d: %w", userID, err)
	}
	return &cart, version, nil
}

// Fill stores the cart with a jittered TTL unless the cart was invalidated
// after the lookup that produced version.
func (r *RedisCache) Fill(ctx context.Context, userID int64, version int64, cart *domain.Cart) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart %d: %w", userID, err)
	}

	ttl := r.baseTTL + time.Duration(rand.Int63n(int64(maxJitter)))
	stored, err := fillScript.Run(ctx, r.client,
		[]string{cartKey(userID), versionKey(userID)},
		strconv.FormatInt(version, 10), payload, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis fill: %w", err)
	}
	if stored == 0 {
		return ErrStaleFill
	}
	return nil
}

// Invalidate bumps the version and drops the entry atomically.
func (r *RedisCache) Invalidate(ctx context.Context, userID int64) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, versionKey(userID))
		p.Expire(ctx, versionKey(userID), versionTTL)
		p.Del(ctx, cartKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}

func parseVersion(v any) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.New("corrupt cart version " + strconv.Quote(s))
	}
	return n, nil
}

// Keys share a hash tag so the fill script and MGET stay on one cluster slot.
func cartKey(userID int64) string {
	return fmt.Sprintf("cart:{%d}", userID)
}

func versionKey(userID int64) string {
	return fmt.Sprintf("cart:{%d}:v", userID)
}
