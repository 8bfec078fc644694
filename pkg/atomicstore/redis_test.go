package atomicstore

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test", time.Second), mr
}

func TestAbsentCreatesOnce(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	mut := Mutation{Set: map[string]string{"expiry": "1700000000"}}

	res, err := store.ConditionalWrite(ctx, "nonce:abc", NotExists(), mut)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.False(t, res.Existed)

	res, err = store.ConditionalWrite(ctx, "nonce:abc", NotExists(), mut)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.True(t, res.Existed)
}

func TestMustExistOnMissingDocument(t *testing.T) {
	store, mr := newTestStore(t)

	res, err := store.ConditionalWrite(context.Background(), "slot:missing", Exists(),
		Mutation{Set: map[string]string{"status": "AVAILABLE"}})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.False(t, res.Existed)
	assert.False(t, mr.Exists("test:slot:missing"))
}

func TestFieldsEqual(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	mr.HSet("test:slot:1", "status", "AVAILABLE")

	res, err := store.ConditionalWrite(ctx, "slot:1",
		Matches(map[string]string{"status": "AVAILABLE", "occupant": ""}),
		Mutation{Set: map[string]string{"status": "RESERVED", "occupant": "a@example.edu"}})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, "RESERVED", mr.HGet("test:slot:1", "status"))

	res, err = store.ConditionalWrite(ctx, "slot:1",
		Matches(map[string]string{"status": "AVAILABLE"}),
		Mutation{Set: map[string]string{"status": "RESERVED", "occupant": "b@example.edu"}})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.True(t, res.Existed)
	assert.Equal(t, "a@example.edu", mr.HGet("test:slot:1", "occupant"))
}

func TestUnsetAndTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	mr.HSet("test:slot:1", "status", "RESERVED")
	mr.HSet("test:slot:1", "occupant", "a@example.edu")

	_, err := store.ConditionalWrite(ctx, "slot:1", Unconditional(), Mutation{
		Set:   map[string]string{"status": "AVAILABLE"},
		Unset: []string{"occupant"},
		TTL:   90 * time.Second,
	})
	require.NoError(t, err)

	fields, found, err := store.Get(ctx, "slot:1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, map[string]string{"status": "AVAILABLE"}, fields)
	assert.Equal(t, 90*time.Second, mr.TTL("test:slot:1"))

	mr.FastForward(91 * time.Second)
	_, found, err = store.Get(ctx, "slot:1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIndexMaintainedWithDocument(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i, key := range []string{"slot:a", "slot:b", "slot:c"} {
		_, err := store.ConditionalWrite(ctx, key, NotExists(), Mutation{
			Set:   map[string]string{"status": "AVAILABLE"},
			Index: &IndexEntry{Key: "slots:index", Score: float64(100 * (i + 1))},
		})
		require.NoError(t, err)
	}

	keys, err := store.RangeByScore(ctx, "slots:index", math.Inf(-1), 200)
	require.NoError(t, err)
	assert.Equal(t, []string{"slot:a", "slot:b"}, keys)

	_, err = store.ConditionalWrite(ctx, "slot:a", Unconditional(), Mutation{
		Delete: true,
		Index:  &IndexEntry{Key: "slots:index"},
	})
	require.NoError(t, err)

	keys, err = store.RangeByScore(ctx, "slots:index", math.Inf(-1), math.Inf(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"slot:b", "slot:c"}, keys)

	docs, err := store.GetMany(ctx, []string{"slot:a", "slot:b"})
	require.NoError(t, err)
	assert.Nil(t, docs[0])
	assert.Equal(t, "AVAILABLE", docs[1]["status"])
}

func TestEmptyMutationRejected(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.ConditionalWrite(context.Background(), "k", Unconditional(), Mutation{})
	assert.ErrorIs(t, err, ErrEmptyMutation)
}

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	mr.HSet("test:slot:1", "status", "AVAILABLE")

	const contenders = 50
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.ConditionalWrite(ctx, "slot:1",
				Matches(map[string]string{"status": "AVAILABLE"}),
				Mutation{Set: map[string]string{"status": "RESERVED"}})
			if err == nil && res.Applied {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestBackendFailureReturnsError(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	_, err := store.ConditionalWrite(context.Background(), "k", NotExists(),
		Mutation{Set: map[string]string{"a": "b"}})
	assert.Error(t, err)

	_, _, err = store.Get(context.Background(), "k")
	assert.Error(t, err)
}
