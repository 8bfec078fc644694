package database

import (
	"gorm.io/gorm"
)

// constraintStatements back the slot store's guarantee in the database:
// a slot can carry at most one confirmed booking
var constraintStatements = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_bookings_confirmed_slot
		ON bookings (slot_id)
		WHERE status = 'CONFIRMED';`,

	`CREATE INDEX IF NOT EXISTS idx_bookings_status_start
		ON bookings (status, start_time);`,

	`CREATE INDEX IF NOT EXISTS idx_bookings_occupant_created
		ON bookings (occupant_email, created_at DESC);`,
}

// MigrateConstraints adds the indexes AutoMigrate cannot express
func MigrateConstraints(db *gorm.DB) error {
	for _, stmt := range constraintStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
