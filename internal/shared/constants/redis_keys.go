package constants

import "time"

// Store keys. The atomic store adds the configured prefix, so these are
// logical names: {module}:{kind}:{identifier}

const (
	// Sorted set of slot keys scored by start time (unix ms)
	KEY_SLOT_INDEX = "slots:index"

	// Cached public listing of upcoming slots
	CACHE_KEY_SLOTS_AVAILABLE = "slots:available"

	// Single-instance marker for the maintenance job
	KEY_MAINTENANCE_LAST_RUN = "maintenance:last_run"
)

const (
	TTL_SLOTS_AVAILABLE = 30 * time.Second
)

// SlotKey returns the document key for a slot id
func SlotKey(slotID string) string {
	return "slot:" + slotID
}

// NonceKey returns the redemption record key for a handoff token id
func NonceKey(jti string) string {
	return "nonce:" + jti
}

// ReminderKey returns the once-per-day claim for the reminder run
func ReminderKey(day string) string {
	return "reminders:" + day
}
