package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const memberSep = "\x00"

// putScript replaces an item hash and moves its index member.
//
// KEYS[1] item hash; ARGV[1] index key prefix; ARGV[2] member suffix;
// ARGV[3..] field/value pairs.
var putScript = redis.NewScript(`
local oldpk = redis.call('HGET', KEYS[1], 'gsi1pk')
local oldsk = redis.call('HGET', KEYS[1], 'gsi1sk')
if oldpk and oldsk then
  redis.call('ZREM', ARGV[1] .. oldpk, oldsk .. ARGV[2])
end
redis.call('DEL', KEYS[1])
for i = 3, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
local newpk = redis.call('HGET', KEYS[1], 'gsi1pk')
local newsk = redis.call('HGET', KEYS[1], 'gsi1sk')
if newpk and newsk then
  redis.call('ZADD', ARGV[1] .. newpk, 0, newsk .. ARGV[2])
end
return 1
`)

// casScript checks preconditions and applies updates in one step.
//
// KEYS[1] item hash; ARGV[1] index key prefix; ARGV[2] member suffix;
// ARGV[3] condition count, then condition pairs, then set pairs.
// Returns 0 when the item is missing or a condition fails.
var casScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local i = 4
local ncond = tonumber(ARGV[3])
for n = 1, ncond do
  local cur = redis.call('HGET', KEYS[1], ARGV[i])
  if not cur then cur = '' end
  if cur ~= ARGV[i + 1] then
    return 0
  end
  i = i + 2
end
local oldpk = redis.call('HGET', KEYS[1], 'gsi1pk')
local oldsk = redis.call('HGET', KEYS[1], 'gsi1sk')
while i <= #ARGV do
  if ARGV[i + 1] == '' then
    redis.call('HDEL', KEYS[1], ARGV[i])
  else
    redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
  end
  i = i + 2
end
local newpk = redis.call('HGET', KEYS[1], 'gsi1pk')
local newsk = redis.call('HGET', KEYS[1], 'gsi1sk')
if oldpk and oldsk then
  redis.call('ZREM', ARGV[1] .. oldpk, oldsk .. ARGV[2])
end
if newpk and newsk then
  redis.call('ZADD', ARGV[1] .. newpk, 0, newsk .. ARGV[2])
end
return 1
`)

// RedisStore implements Store with one hash per item and one lexicographic
// sorted set per index partition. Members are "<gsi1sk>\x00<owner>\x00<entity>".
// The scripts touch index keys they compute, so this backend targets a single
// Redis node rather than a cluster.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg *RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, cfg.Prefix), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "coursegen"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) itemKey(key Key) string {
	return s.prefix + ":item:" + key.Owner + memberSep + key.Entity
}

func (s *RedisStore) indexPrefix() string {
	return s.prefix + ":idx:"
}

func memberSuffix(key Key) string {
	return memberSep + key.Owner + memberSep + key.Entity
}

func (s *RedisStore) Get(ctx context.Context, key Key) (*Item, error) {
	attrs, err := s.client.HGetAll(ctx, s.itemKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if len(attrs) == 0 {
		return nil, ErrNotFound
	}
	return &Item{Key: key, Attrs: attrs}, nil
}

func (s *RedisStore) Put(ctx context.Context, item *Item) error {
	args := []interface{}{s.indexPrefix(), memberSuffix(item.Key)}
	for _, k := range sortedKeys(item.Attrs) {
		if v := item.Attrs[k]; v != "" {
			args = append(args, k, v)
		}
	}
	if err := putScript.Run(ctx, s.client, []string{s.itemKey(item.Key)}, args...).Err(); err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

func (s *RedisStore) ConditionalUpdate(ctx context.Context, key Key, set, cond map[string]string) error {
	args := []interface{}{s.indexPrefix(), memberSuffix(key), len(cond)}
	for _, k := range sortedKeys(cond) {
		args = append(args, k, cond[k])
	}
	for _, k := range sortedKeys(set) {
		args = append(args, k, set[k])
	}

	ok, err := casScript.Run(ctx, s.client, []string{s.itemKey(key)}, args...).Int()
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if ok == 0 {
		return ErrConditionFailed
	}
	return nil
}

func (s *RedisStore) Query(ctx context.Context, q QueryInput) ([]Item, error) {
	idx := s.indexPrefix() + q.Partition
	limit := int64(limitOrDefault(q.Limit))
	by := &redis.ZRangeBy{
		Min:   "[" + q.SortPrefix,
		Max:   "[" + q.SortPrefix + "\xff",
		Count: limit,
	}
	if q.SortPrefix == "" {
		by.Min, by.Max = "-", "+"
	}

	var (
		members []string
		err     error
	)
	if q.Ascending {
		members, err = s.client.ZRangeByLex(ctx, idx, by).Result()
	} else {
		members, err = s.client.ZRevRangeByLex(ctx, idx, by).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	items := make([]Item, 0, len(members))
	for _, m := range members {
		parts := strings.SplitN(m, memberSep, 3)
		if len(parts) != 3 {
			continue
		}
		item, err := s.Get(ctx, Key{Owner: parts[1], Entity: parts[2]})
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		// The item may have moved partitions since the range read.
		if item.Attr(AttrIndexPK) != q.Partition {
			continue
		}
		items = append(items, *item)
	}
	return items, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
