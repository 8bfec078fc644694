package slots

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"tutorbook/internal/shared/constants"
	"tutorbook/internal/shared/errs"
	"tutorbook/pkg/atomicstore"
	"tutorbook/pkg/cache"
	"tutorbook/pkg/logger"
)

// restoreTimeout bounds the re-reserve after a failed reassignment
const restoreTimeout = 5 * time.Second

// Ledger owns slot state transitions. Every transition is a conditional
// write, so two requests racing for a slot cannot both win.
type Ledger struct {
	store    atomicstore.Store
	cache    cache.Service
	cacheTTL time.Duration
	log      *logger.Logger
}

// NewLedger creates a ledger. cache may be nil.
func NewLedger(store atomicstore.Store, cacheService cache.Service) *Ledger {
	return &Ledger{
		store:    store,
		cache:    cacheService,
		cacheTTL: constants.TTL_SLOTS_AVAILABLE,
		log:      logger.GetDefault().WithComponent("slots"),
	}
}

// WithListingTTL sets how long the available-slot listing may be cached
func (l *Ledger) WithListingTTL(ttl time.Duration) *Ledger {
	if ttl > 0 {
		l.cacheTTL = ttl
	}
	return l
}

// Reserve claims an available slot for occupant
func (l *Ledger) Reserve(ctx context.Context, slotID, occupant string) error {
	res, err := l.store.ConditionalWrite(ctx, constants.SlotKey(slotID),
		atomicstore.Matches(map[string]string{fieldStatus: string(StatusAvailable)}),
		atomicstore.Mutation{Set: map[string]string{
			fieldStatus:   string(StatusReserved),
			fieldOccupant: occupant,
		}},
	)
	if err != nil {
		return fmt.Errorf("reserve %s: %w", slotID, errs.Storage(err))
	}
	if !res.Applied {
		if !res.Existed {
			return ErrSlotNotFound
		}
		return ErrSlotConflict
	}

	l.invalidate(ctx)
	return nil
}

// Release makes a slot available again. Releasing an available slot, or
// one that no longer exists, succeeds without change.
func (l *Ledger) Release(ctx context.Context, slotID string) error {
	res, err := l.store.ConditionalWrite(ctx, constants.SlotKey(slotID),
		atomicstore.Exists(),
		atomicstore.Mutation{
			Set:   map[string]string{fieldStatus: string(StatusAvailable)},
			Unset: []string{fieldOccupant},
		},
	)
	if err != nil {
		return fmt.Errorf("release %s: %w", slotID, errs.Storage(err))
	}
	if !res.Applied {
		l.log.Debug("release of missing slot ignored", "slot_id", slotID)
		return nil
	}

	l.invalidate(ctx)
	return nil
}

// ReleaseHeldBy makes a slot available again only while occupant still
// holds it. It reports whether the slot was released.
func (l *Ledger) ReleaseHeldBy(ctx context.Context, slotID, occupant string) (bool, error) {
	res, err := l.store.ConditionalWrite(ctx, constants.SlotKey(slotID),
		atomicstore.Matches(map[string]string{
			fieldStatus:   string(StatusReserved),
			fieldOccupant: occupant,
		}),
		atomicstore.Mutation{
			Set:   map[string]string{fieldStatus: string(StatusAvailable)},
			Unset: []string{fieldOccupant},
		},
	)
	if err != nil {
		return false, fmt.Errorf("release %s held by %s: %w", slotID, occupant, errs.Storage(err))
	}
	if res.Applied {
		l.invalidate(ctx)
	}
	return res.Applied, nil
}

// Retire marks a slot RELEASED after its session took place. A missing
// slot is ignored.
func (l *Ledger) Retire(ctx context.Context, slotID string) error {
	_, err := l.store.ConditionalWrite(ctx, constants.SlotKey(slotID),
		atomicstore.Exists(),
		atomicstore.Mutation{Set: map[string]string{fieldStatus: string(StatusReleased)}},
	)
	if err != nil {
		return fmt.Errorf("retire %s: %w", slotID, errs.Storage(err))
	}

	l.invalidate(ctx)
	return nil
}

// Reassign moves occupant from oldID to newID. The old slot is released
// first; if the new one cannot be claimed the old one is re-reserved and
// the claim error is returned. Between the two steps neither slot is held.
// If the old slot cannot be re-reserved either, the error wraps both
// ErrRestoreFailed and the claim error.
func (l *Ledger) Reassign(ctx context.Context, oldID, newID, occupant string) error {
	if oldID == newID {
		return nil
	}

	if err := l.Release(ctx, oldID); err != nil {
		return err
	}

	claimErr := l.Reserve(ctx, newID, occupant)
	if claimErr == nil {
		return nil
	}

	restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
	defer cancel()
	if err := l.Reserve(restoreCtx, oldID, occupant); err != nil {
		// Someone took the old slot in the gap, or the store failed
		l.log.WarnContext(ctx, "could not restore original slot after failed reassignment",
			"old_slot_id", oldID,
			"new_slot_id", newID,
			"error", err,
		)
		return fmt.Errorf("%w: restore %s: %v; claim %s: %w", ErrRestoreFailed, oldID, err, newID, claimErr)
	}
	return claimErr
}

// Insert stores slot if no slot with its id exists. It reports whether the
// slot was added.
func (l *Ledger) Insert(ctx context.Context, slot TimeSlot) (bool, error) {
	res, err := l.store.ConditionalWrite(ctx, constants.SlotKey(slot.ID),
		atomicstore.NotExists(),
		atomicstore.Mutation{
			Set:   slot.fields(),
			Index: &atomicstore.IndexEntry{Key: constants.KEY_SLOT_INDEX, Score: slot.score()},
		},
	)
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", slot.ID, errs.Storage(err))
	}
	if res.Applied {
		l.invalidate(ctx)
	}
	return res.Applied, nil
}

// Delete removes a slot and its index entry regardless of status
func (l *Ledger) Delete(ctx context.Context, slotID string) error {
	_, err := l.store.ConditionalWrite(ctx, constants.SlotKey(slotID),
		atomicstore.Unconditional(),
		atomicstore.Mutation{
			Delete: true,
			Index:  &atomicstore.IndexEntry{Key: constants.KEY_SLOT_INDEX},
		},
	)
	if err != nil {
		return fmt.Errorf("delete %s: %w", slotID, errs.Storage(err))
	}

	l.invalidate(ctx)
	return nil
}

// Remove deletes a slot that is not reserved. A reserved slot is refused
// with ErrSlotReserved so no booking loses its slot.
func (l *Ledger) Remove(ctx context.Context, slotID string) error {
	for _, status := range []Status{StatusAvailable, StatusReleased} {
		res, err := l.store.ConditionalWrite(ctx, constants.SlotKey(slotID),
			atomicstore.Matches(map[string]string{fieldStatus: string(status)}),
			atomicstore.Mutation{
				Delete: true,
				Index:  &atomicstore.IndexEntry{Key: constants.KEY_SLOT_INDEX},
			},
		)
		if err != nil {
			return fmt.Errorf("remove %s: %w", slotID, errs.Storage(err))
		}
		if res.Applied {
			l.invalidate(ctx)
			return nil
		}
		if !res.Existed {
			return ErrSlotNotFound
		}
	}
	return ErrSlotReserved
}

// UpdateLocation changes where a slot's session takes place
func (l *Ledger) UpdateLocation(ctx context.Context, slotID, locationType, locationValue string) error {
	res, err := l.store.ConditionalWrite(ctx, constants.SlotKey(slotID),
		atomicstore.Exists(),
		atomicstore.Mutation{Set: map[string]string{
			fieldLocationType:  locationType,
			fieldLocationValue: locationValue,
		}},
	)
	if err != nil {
		return fmt.Errorf("update location %s: %w", slotID, errs.Storage(err))
	}
	if !res.Applied {
		return ErrSlotNotFound
	}

	l.invalidate(ctx)
	return nil
}

// Get loads one slot
func (l *Ledger) Get(ctx context.Context, slotID string) (TimeSlot, error) {
	fields, found, err := l.store.Get(ctx, constants.SlotKey(slotID))
	if err != nil {
		return TimeSlot{}, fmt.Errorf("get %s: %w", slotID, errs.Storage(err))
	}
	if !found {
		return TimeSlot{}, ErrSlotNotFound
	}
	return slotFromFields(slotID, fields)
}

// ListBetween returns slots starting in [from, to], ordered by start
func (l *Ledger) ListBetween(ctx context.Context, from, to time.Time) ([]TimeSlot, error) {
	return l.listByScore(ctx, scoreFor(from), scoreFor(to))
}

func (l *Ledger) listByScore(ctx context.Context, min, max float64) ([]TimeSlot, error) {
	keys, err := l.store.RangeByScore(ctx, constants.KEY_SLOT_INDEX, min, max)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", errs.Storage(err))
	}

	docs, err := l.store.GetMany(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", errs.Storage(err))
	}

	result := make([]TimeSlot, 0, len(keys))
	for i, doc := range docs {
		if doc == nil {
			continue
		}
		id := slotIDFromKey(keys[i])
		slot, err := slotFromFields(id, doc)
		if err != nil {
			l.log.WarnContext(ctx, "skipping unreadable slot", "slot_id", id, "error", err)
			continue
		}
		result = append(result, slot)
	}
	return result, nil
}

// PurgeStartingBefore deletes every slot starting at or before t,
// whatever its status. It returns the number of slots removed and the
// reserved ones among them.
func (l *Ledger) PurgeStartingBefore(ctx context.Context, t time.Time) (int, []TimeSlot, error) {
	keys, err := l.store.RangeByScore(ctx, constants.KEY_SLOT_INDEX, math.Inf(-1), scoreFor(t))
	if err != nil {
		return 0, nil, fmt.Errorf("purge slots: %w", errs.Storage(err))
	}

	docs, err := l.store.GetMany(ctx, keys)
	if err != nil {
		return 0, nil, fmt.Errorf("purge slots: %w", errs.Storage(err))
	}

	deleted := 0
	var reserved []TimeSlot
	for i, key := range keys {
		id := slotIDFromKey(key)
		if docs[i] != nil {
			if slot, err := slotFromFields(id, docs[i]); err == nil && slot.Status == StatusReserved {
				reserved = append(reserved, slot)
			}
		}
		// Index entries without a document are dropped too
		if err := l.Delete(ctx, id); err != nil {
			return deleted, reserved, err
		}
		if docs[i] != nil {
			deleted++
		}
	}
	return deleted, reserved, nil
}

// ListAvailable returns bookable slots starting after now, at most limit
// when limit > 0. The listing is served from cache when one is configured.
func (l *Ledger) ListAvailable(ctx context.Context, now time.Time, limit int) ([]TimeSlot, error) {
	var upcoming []TimeSlot
	fetch := func() (interface{}, error) {
		slots, err := l.listByScore(ctx, scoreFor(now), math.Inf(1))
		if err != nil {
			return nil, err
		}
		return toCached(slots), nil
	}

	if l.cache != nil {
		var cached []cachedSlot
		err := l.cache.GetOrSet(ctx, constants.CACHE_KEY_SLOTS_AVAILABLE, l.cacheTTL, fetch, &cached)
		if err != nil {
			return nil, unwrapFetchError(err)
		}
		upcoming = fromCached(cached)
	} else {
		slots, err := l.listByScore(ctx, scoreFor(now), math.Inf(1))
		if err != nil {
			return nil, err
		}
		upcoming = slots
	}

	available := make([]TimeSlot, 0, len(upcoming))
	for _, slot := range upcoming {
		if slot.Status.IsBookable() && slot.Start.After(now) {
			available = append(available, slot)
		}
	}
	if limit > 0 && len(available) > limit {
		available = available[:limit]
	}
	return available, nil
}

func (l *Ledger) invalidate(ctx context.Context) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Delete(ctx, constants.CACHE_KEY_SLOTS_AVAILABLE); err != nil {
		l.log.WarnContext(ctx, "failed to invalidate slot listing cache", "error", err)
	}
}

func slotIDFromKey(key string) string {
	const prefix = "slot:"
	if len(key) > len(prefix) && key[:len(prefix)] == prefix {
		return key[len(prefix):]
	}
	return key
}

// unwrapFetchError keeps the classified store error when the cache layer
// wraps it
func unwrapFetchError(err error) error {
	var classified *errs.Error
	if errors.As(err, &classified) {
		return classified
	}
	return errs.Storage(err)
}

// cachedSlot is the JSON form of TimeSlot held in the listing cache
type cachedSlot struct {
	ID            string    `json:"id"`
	Start         time.Time `json:"start"`
	Status        Status    `json:"status"`
	Occupant      string    `json:"occupant,omitempty"`
	OwnerID       string    `json:"owner"`
	LocationType  string    `json:"location_type"`
	LocationValue string    `json:"location_value"`
}

func toCached(slots []TimeSlot) []cachedSlot {
	out := make([]cachedSlot, len(slots))
	for i, s := range slots {
		out[i] = cachedSlot(s)
	}
	return out
}

func fromCached(cached []cachedSlot) []TimeSlot {
	out := make([]TimeSlot, len(cached))
	for i, c := range cached {
		out[i] = TimeSlot(c)
	}
	return out
}
