package database

import (
	"tutorbook/internal/bans"
	"tutorbook/internal/bookings"

	"gorm.io/gorm"
)

// Migrate creates or updates the booking and ban tables and their
// constraints
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&bookings.Booking{}, &bans.Ban{}); err != nil {
		return err
	}
	return MigrateConstraints(db)
}
