package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/docconv/internal/plan"
)

// reserveScript performs the check-and-debit inside Redis.  Scripts run
// without interleaving, which gives the per-key atomicity the ledger needs.
// It returns {reserved, pages_used}.
var reserveScript = redis.NewScript(`
	local key = KEYS[1]
	local pages = tonumber(ARGV[1])
	local limit = tonumber(ARGV[2])
	local ttl_seconds = tonumber(ARGV[3])

	local used = tonumber(redis.call('GET', key) or '0')
	if used + pages > limit then
		return { 0, used }
	end
	used = redis.call('INCRBY', key, pages)
	redis.call('EXPIRE', key, ttl_seconds)
	return { 1, used }
`)

// RedisStore keeps plans and daily counters in Redis.  Counters expire
// after the retention window; plans never expire.  Durability depends on
// the server's persistence settings (AOF recommended).
type RedisStore struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration
}

// NewRedisStore returns a store using keys under prefix.
func NewRedisStore(rdb *redis.Client, prefix string, retention time.Duration) *RedisStore {
	if retention < 48*time.Hour {
		retention = 48 * time.Hour
	}
	return &RedisStore{rdb: rdb, prefix: prefix, retention: retention}
}

func (s *RedisStore) userKey(userID int64) string {
	return s.prefix + ":user:" + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) usageKey(userID int64, day string) string {
	return s.prefix + ":usage:" + strconv.FormatInt(userID, 10) + ":" + day
}

func (s *RedisStore) EnsureUser(ctx context.Context, userID int64, def plan.ID) (plan.ID, error) {
	key := s.userKey(userID)
	if err := s.rdb.SetNX(ctx, key, string(def), 0).Err(); err != nil {
		return "", err
	}
	p, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		return "", err
	}
	return plan.ID(p), nil
}

func (s *RedisStore) SetPlan(ctx context.Context, userID int64, p plan.ID) error {
	return s.rdb.Set(ctx, s.userKey(userID), string(p), 0).Err()
}

func (s *RedisStore) UsageOn(ctx context.Context, userID int64, day string) (int, error) {
	key := s.usageKey(userID, day)
	if err := s.rdb.SetNX(ctx, key, 0, s.retention).Err(); err != nil {
		return 0, err
	}
	n, err := s.rdb.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (s *RedisStore) Reserve(ctx context.Context, userID int64, day string, pages, limit int) (int, bool, error) {
	vals, err := reserveScript.Run(ctx, s.rdb, []string{s.usageKey(userID, day)},
		pages, limit, int64(s.retention/time.Second)).Result()
	if err != nil {
		return 0, false, err
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 2 {
		return 0, false, fmt.Errorf("%w: %#v", ErrUnexpectedReply, vals)
	}
	reserved, ok1 := arr[0].(int64)
	used, ok2 := arr[1].(int64)
	if !ok1 || !ok2 {
		return 0, false, fmt.Errorf("%w: %#v", ErrUnexpectedReply, vals)
	}
	return int(used), reserved == 1, nil
}
