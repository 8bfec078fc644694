package slots

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTemplate(t *testing.T) {
	tmpl, err := ParseTemplate("wed=15:00,14:00; FRI=11:30")
	require.NoError(t, err)

	assert.Equal(t, []TimeOfDay{{14, 0}, {15, 0}}, tmpl[time.Wednesday])
	assert.Equal(t, []TimeOfDay{{11, 30}}, tmpl[time.Friday])
	assert.Empty(t, tmpl[time.Monday])
}

func TestParseTemplateRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "TUE", "XYZ=11:00", "TUE=25:00", "TUE=11", "TUE=11:75"} {
		_, err := ParseTemplate(raw)
		assert.Error(t, err, raw)
	}
}

func TestGenerateOneWeek(t *testing.T) {
	// Monday morning: the whole week is ahead
	slots := Generate(testGeneratorConfig(t, 1), at(2025, time.January, 6, 10, 0))

	require.Len(t, slots, 10)
	assert.Equal(t, "202501071100_tutor1", slots[0].ID)
	assert.Equal(t, "202501101300_tutor1", slots[len(slots)-1].ID)
	for _, s := range slots {
		assert.Equal(t, StatusAvailable, s.Status)
		assert.Equal(t, "Library 204", s.LocationValue)
	}
}

func TestGenerateSkipsStartedSessions(t *testing.T) {
	slots := Generate(testGeneratorConfig(t, 1), at(2025, time.January, 7, 11, 0))

	// Tuesday 11:00 has started; the window ends before next Tuesday
	require.Len(t, slots, 9)
	assert.Equal(t, "202501071200_tutor1", slots[0].ID)
}

func TestGenerateSixWeeks(t *testing.T) {
	slots := Generate(testGeneratorConfig(t, 6), at(2025, time.January, 6, 10, 0))
	assert.Len(t, slots, 60)

	seen := map[string]bool{}
	for _, s := range slots {
		assert.False(t, seen[s.ID], "duplicate id %s", s.ID)
		seen[s.ID] = true
	}
}

func TestGenerateAcrossDaylightSaving(t *testing.T) {
	// Clocks move forward on 9 March 2025
	slots := Generate(testGeneratorConfig(t, 2), at(2025, time.March, 3, 9, 0))

	var before, after TimeSlot
	for _, s := range slots {
		switch s.ID {
		case "202503041100_tutor1":
			before = s
		case "202503111100_tutor1":
			after = s
		}
	}
	require.NotEmpty(t, before.ID)
	require.NotEmpty(t, after.ID)
	assert.Equal(t, 16, before.Start.UTC().Hour())
	assert.Equal(t, 15, after.Start.UTC().Hour())
	assert.Equal(t, 11, after.Start.In(newYork).Hour())
}

func TestGenerateAndStoreIsIdempotent(t *testing.T) {
	env := newTestEnv(t, false)
	gen := NewGenerator(env.ledger, testGeneratorConfig(t, 1), nil)
	gen.now = fixedClock(at(2025, time.January, 6, 10, 0))
	ctx := context.Background()

	first, err := gen.GenerateAndStore(ctx)
	require.NoError(t, err)
	assert.Equal(t, GenerateResponse{Added: 10}, first)

	require.NoError(t, env.ledger.Reserve(ctx, "202501071100_tutor1", "a@example.edu"))

	second, err := gen.GenerateAndStore(ctx)
	require.NoError(t, err)
	assert.Equal(t, GenerateResponse{Added: 0, Skipped: 10}, second)

	// Regeneration does not reset a reserved slot
	slot, err := env.ledger.Get(ctx, "202501071100_tutor1")
	require.NoError(t, err)
	assert.Equal(t, StatusReserved, slot.Status)
}

func TestPurgeExpiredRemovesPastSlotsWhateverTheirStatus(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	past := env.seed(t, at(2025, time.January, 7, 11, 0))
	reservedPast := env.seed(t, at(2025, time.January, 7, 12, 0))
	future := env.seed(t, at(2025, time.January, 8, 14, 0))
	require.NoError(t, env.ledger.Reserve(ctx, reservedPast.ID, "a@example.edu"))

	gen := NewGenerator(env.ledger, testGeneratorConfig(t, 1), nil)
	gen.now = fixedClock(at(2025, time.January, 7, 12, 0))

	deleted, err := gen.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = env.ledger.Get(ctx, past.ID)
	assert.ErrorIs(t, err, ErrSlotNotFound)
	_, err = env.ledger.Get(ctx, reservedPast.ID)
	assert.ErrorIs(t, err, ErrSlotNotFound)
	_, err = env.ledger.Get(ctx, future.ID)
	assert.NoError(t, err)
}

type recordingAdvisor struct {
	calls     int
	available int
	err       error
}

func (r *recordingAdvisor) LowInventory(_ context.Context, available, _ int) error {
	r.calls++
	r.available = available
	return r.err
}

func TestCheckInventoryAdvisesWithoutGenerating(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	env.seed(t, at(2025, time.January, 8, 14, 0))
	booked := env.seed(t, at(2025, time.January, 8, 15, 0))
	require.NoError(t, env.ledger.Reserve(ctx, booked.ID, "a@example.edu"))

	advisor := &recordingAdvisor{err: errors.New("broker down")}
	gen := NewGenerator(env.ledger, testGeneratorConfig(t, 1), advisor)
	gen.now = fixedClock(at(2025, time.January, 6, 10, 0))

	status, err := gen.CheckInventory(ctx)
	require.NoError(t, err)
	assert.True(t, status.Low)
	assert.Equal(t, 1, status.Available)
	assert.Equal(t, 1, advisor.calls)
	assert.Equal(t, 1, advisor.available)

	all, err := env.ledger.ListBetween(ctx, at(2025, time.January, 1, 0, 0), at(2025, time.February, 1, 0, 0))
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCheckInventoryAboveFloor(t *testing.T) {
	env := newTestEnv(t, false)
	cfg := testGeneratorConfig(t, 2)
	cfg.LowInventoryFloor = 5
	advisor := &recordingAdvisor{}
	gen := NewGenerator(env.ledger, cfg, advisor)
	gen.now = fixedClock(at(2025, time.January, 6, 10, 0))
	ctx := context.Background()

	_, err := gen.GenerateAndStore(ctx)
	require.NoError(t, err)

	status, err := gen.CheckInventory(ctx)
	require.NoError(t, err)
	assert.False(t, status.Low)
	assert.Equal(t, 20, status.Available)
	assert.Zero(t, advisor.calls)
}
