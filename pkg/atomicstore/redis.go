package atomicstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lua script for a guarded hash write - the condition check and the write
// run as one script so no other client can interleave.
const luaConditionalWrite = `
-- KEYS[1] = document key
-- KEYS[2] = index key (optional)
-- ARGV    = mode, ncond, cond pairs..., delete, nset, set pairs...,
--           nunset, unset fields..., ttl_ms, index_score, index_member

local key = KEYS[1]
local i = 1
local mode = ARGV[i]; i = i + 1

local existed = redis.call("EXISTS", key)

local ncond = tonumber(ARGV[i]); i = i + 1
local cond_start = i
i = i + ncond * 2

if mode == "exists" and existed == 0 then
    return {0, existed}
end
if mode == "absent" and existed == 1 then
    return {0, existed}
end
if mode == "equals" then
    if existed == 0 then
        return {0, existed}
    end
    for c = cond_start, cond_start + ncond * 2 - 1, 2 do
        local current = redis.call("HGET", key, ARGV[c])
        if not current then
            current = ""
        end
        if current ~= ARGV[c + 1] then
            return {0, existed}
        end
    end
end

local delete = ARGV[i]; i = i + 1

local nset = tonumber(ARGV[i]); i = i + 1
local set_args = {}
for s = 1, nset * 2 do
    set_args[s] = ARGV[i]; i = i + 1
end

local nunset = tonumber(ARGV[i]); i = i + 1
local unset_args = {}
for u = 1, nunset do
    unset_args[u] = ARGV[i]; i = i + 1
end

local ttl = tonumber(ARGV[i]); i = i + 1
local index_score = ARGV[i]; i = i + 1
local index_member = ARGV[i]
local index_key = KEYS[2]

if delete == "1" then
    redis.call("DEL", key)
    if index_key then
        redis.call("ZREM", index_key, index_member)
    end
    return {1, existed}
end

if nset > 0 then
    redis.call("HSET", key, unpack(set_args))
end
if nunset > 0 then
    redis.call("HDEL", key, unpack(unset_args))
end
if ttl > 0 then
    redis.call("PEXPIRE", key, ttl)
end
if index_key then
    redis.call("ZADD", index_key, index_score, index_member)
end

return {1, existed}
`

var conditionalWriteScript = redis.NewScript(luaConditionalWrite)

// RedisStore implements Store on Redis hashes
type RedisStore struct {
	client    *redis.Client
	prefix    string
	opTimeout time.Duration
}

// NewRedisStore creates a store whose keys live under prefix. Each call is
// bounded by opTimeout when it is positive.
func NewRedisStore(client *redis.Client, prefix string, opTimeout time.Duration) *RedisStore {
	return &RedisStore{
		client:    client,
		prefix:    prefix,
		opTimeout: opTimeout,
	}
}

// PreloadScripts loads the Lua script so the first write skips the EVAL fallback
func (s *RedisStore) PreloadScripts(ctx context.Context) error {
	if err := conditionalWriteScript.Load(ctx, s.client).Err(); err != nil {
		return fmt.Errorf("failed to load conditional write script: %w", err)
	}
	return nil
}

func (s *RedisStore) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// ConditionalWrite applies mut to key if cond holds
func (s *RedisStore) ConditionalWrite(ctx context.Context, key string, cond Condition, mut Mutation) (Result, error) {
	if mut.empty() {
		return Result{}, ErrEmptyMutation
	}

	keys := []string{s.fullKey(key)}
	if mut.Index != nil {
		keys = append(keys, s.fullKey(mut.Index.Key))
	}

	args := make([]interface{}, 0, 8+2*len(cond.Fields)+2*len(mut.Set)+len(mut.Unset))
	args = append(args, conditionMode(cond.Kind))
	if cond.Kind == FieldsEqual {
		args = append(args, len(cond.Fields))
		for field, value := range cond.Fields {
			args = append(args, field, value)
		}
	} else {
		args = append(args, 0)
	}

	if mut.Delete {
		args = append(args, "1")
	} else {
		args = append(args, "0")
	}

	args = append(args, len(mut.Set))
	for field, value := range mut.Set {
		args = append(args, field, value)
	}

	args = append(args, len(mut.Unset))
	for _, field := range mut.Unset {
		args = append(args, field)
	}

	args = append(args, mut.TTL.Milliseconds())
	if mut.Index != nil {
		args = append(args, strconv.FormatFloat(mut.Index.Score, 'f', -1, 64), key)
	} else {
		args = append(args, "0", "")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := conditionalWriteScript.Run(ctx, s.client, keys, args...).Result()
	if err != nil {
		return Result{}, fmt.Errorf("conditional write %s: %w", key, err)
	}

	return parseResult(raw)
}

func parseResult(raw interface{}) (Result, error) {
	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return Result{}, fmt.Errorf("unexpected script result: %v", raw)
	}
	applied, ok1 := values[0].(int64)
	existed, ok2 := values[1].(int64)
	if !ok1 || !ok2 {
		return Result{}, fmt.Errorf("unexpected script result types: %v", raw)
	}
	return Result{Applied: applied == 1, Existed: existed == 1}, nil
}

func conditionMode(kind ConditionKind) string {
	switch kind {
	case MustExist:
		return "exists"
	case Absent:
		return "absent"
	case FieldsEqual:
		return "equals"
	default:
		return "always"
	}
}

// Get returns the document fields and whether it exists
func (s *RedisStore) Get(ctx context.Context, key string) (map[string]string, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, s.fullKey(key)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}
	return fields, true, nil
}

// GetMany fetches several documents in one round trip. Missing documents
// come back as nil entries.
func (s *RedisStore) GetMany(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGetAll(ctx, s.fullKey(key))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("get many: %w", err)
	}

	docs := make([]map[string]string, len(keys))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) > 0 {
			docs[i] = fields
		}
	}
	return docs, nil
}

// RangeByScore returns the document keys in index with min <= score <= max
func (s *RedisStore) RangeByScore(ctx context.Context, index string, min, max float64) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	members, err := s.client.ZRangeByScore(ctx, s.fullKey(index), &redis.ZRangeBy{
		Min: formatBound(min),
		Max: formatBound(max),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("range %s: %w", index, err)
	}
	return members, nil
}

func formatBound(v float64) string {
	switch {
	case v > 1e300:
		return "+inf"
	case v < -1e300:
		return "-inf"
	default:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
}

// Ping checks connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.client.Ping(ctx).Err()
}
