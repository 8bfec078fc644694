package slots

import (
	"context"
	"sync"
	"testing"
	"time"

	"tutorbook/pkg/atomicstore"
	"tutorbook/pkg/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var newYork = mustLoad("America/New_York")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func defaultTemplate(t *testing.T) WeeklyTemplate {
	t.Helper()
	tmpl, err := ParseTemplate("TUE=11:00,12:00,13:00;WED=14:00,15:00;THU=12:00,13:00;FRI=11:00,12:00,13:00")
	require.NoError(t, err)
	return tmpl
}

func testGeneratorConfig(t *testing.T, weeks int) GeneratorConfig {
	return GeneratorConfig{
		OwnerID:           "tutor1",
		LocationType:      "room",
		LocationValue:     "Library 204",
		WeeksAhead:        weeks,
		LowInventoryFloor: 15,
		Location:          newYork,
		Template:          defaultTemplate(t),
	}
}

type testEnv struct {
	mr     *miniredis.Miniredis
	store  *atomicstore.RedisStore
	ledger *Ledger
}

func newTestEnv(t *testing.T, withCache bool) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := atomicstore.NewRedisStore(client, "test", time.Second)
	var cacheService cache.Service
	if withCache {
		cacheService = cache.NewService(client, "test")
	}
	return &testEnv{mr: mr, store: store, ledger: NewLedger(store, cacheService)}
}

// seed inserts one available slot starting at start
func (e *testEnv) seed(t *testing.T, start time.Time) TimeSlot {
	t.Helper()
	slot := TimeSlot{
		ID:            SlotID(start, "tutor1", newYork),
		Start:         start,
		Status:        StatusAvailable,
		OwnerID:       "tutor1",
		LocationType:  "room",
		LocationValue: "Library 204",
	}
	added, err := e.ledger.Insert(context.Background(), slot)
	require.NoError(t, err)
	require.True(t, added)
	return slot
}

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, newYork)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}


// interceptStore runs before once, ahead of the first write to key
type interceptStore struct {
	atomicstore.Store
	mu     sync.Mutex
	key    string
	before func()
}

func (s *interceptStore) ConditionalWrite(ctx context.Context, key string, cond atomicstore.Condition, mut atomicstore.Mutation) (atomicstore.Result, error) {
	s.mu.Lock()
	var hook func()
	if key == s.key {
		hook, s.before = s.before, nil
	}
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return s.Store.ConditionalWrite(ctx, key, cond, mut)
}
