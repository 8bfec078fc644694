package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"tutorbook/internal/bookings"
	"tutorbook/internal/shared/config"
	"tutorbook/internal/shared/database"
	"tutorbook/internal/slots"
	"tutorbook/pkg/atomicstore"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Seeder struct {
	db     *database.DB
	cfg    *config.Config
	ledger *slots.Ledger
}

func main() {
	clean := flag.Bool("clean", false, "delete every booking and slot before seeding")
	adminEmail := flag.String("admin-email", "", "print an ADMIN_ACCOUNTS entry for this email")
	adminPassword := flag.String("admin-password", "", "password for -admin-email")
	flag.Parse()

	fmt.Println("Starting Tutorbook seeder...")
	_ = godotenv.Load()

	if *adminEmail != "" {
		entry, err := adminAccountEntry(*adminEmail, *adminPassword)
		if err != nil {
			log.Fatalf("Failed to hash admin password: %v", err)
		}
		fmt.Printf("\nADMIN_ACCOUNTS=%s\n", entry)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	store := atomicstore.NewRedisStore(db.Redis, cfg.Redis.KeyPrefix, cfg.Redis.OpTimeout)
	seeder := &Seeder{db: db, cfg: cfg, ledger: slots.NewLedger(store, nil)}
	ctx := context.Background()

	if *clean {
		fmt.Println("\nCleaning bookings and slots...")
		bookingsDeleted, slotsDeleted, err := seeder.CleanDatabase(ctx)
		if err != nil {
			log.Fatalf("Failed to clean database: %v", err)
		}
		fmt.Printf("Removed %d bookings and %d slots\n", bookingsDeleted, slotsDeleted)
	}

	fmt.Println("\nSeeding slots from the weekly template...")
	report, err := seeder.SeedSlots(ctx)
	if err != nil {
		log.Fatalf("Failed to seed slots: %v", err)
	}
	fmt.Printf("Added %d slots, %d already existed\n", report.Added, report.Skipped)

	fmt.Println("\nSeeding completed.")
}

// CleanDatabase removes every booking row and every slot, past or future
func (s *Seeder) CleanDatabase(ctx context.Context) (int64, int, error) {
	result := s.db.PostgreSQL.WithContext(ctx).Where("1 = 1").Delete(&bookings.Booking{})
	if result.Error != nil {
		return 0, 0, fmt.Errorf("delete bookings: %w", result.Error)
	}

	deleted, _, err := s.ledger.PurgeStartingBefore(ctx, time.Unix(math.MaxInt32, 0))
	if err != nil {
		return result.RowsAffected, deleted, fmt.Errorf("delete slots: %w", err)
	}
	return result.RowsAffected, deleted, nil
}

// SeedSlots inserts the template slots for the configured horizon
func (s *Seeder) SeedSlots(ctx context.Context) (slots.GenerateResponse, error) {
	loc, err := time.LoadLocation(s.cfg.Scheduling.Timezone)
	if err != nil {
		return slots.GenerateResponse{}, err
	}
	template, err := slots.ParseTemplate(s.cfg.Scheduling.WeeklyTemplate)
	if err != nil {
		return slots.GenerateResponse{}, err
	}

	generator := slots.NewGenerator(s.ledger, slots.GeneratorConfig{
		OwnerID:           s.cfg.Scheduling.TutorID,
		LocationType:      s.cfg.Scheduling.LocationType,
		LocationValue:     s.cfg.Scheduling.LocationValue,
		WeeksAhead:        s.cfg.Scheduling.WeeksAhead,
		LowInventoryFloor: s.cfg.Scheduling.LowInventoryFloor,
		Location:          loc,
		Template:          template,
	}, nil)
	return generator.GenerateAndStore(ctx)
}

func adminAccountEntry(email, password string) (string, error) {
	if len(password) < 6 {
		return "", fmt.Errorf("password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(email)) + ":" + string(hash), nil
}
