package slots

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"tutorbook/internal/shared/errs"
	"tutorbook/pkg/logger"

	"github.com/jinzhu/now"
)

// TimeOfDay is a wall-clock start time in the business timezone
type TimeOfDay struct {
	Hour   int
	Minute int
}

// WeeklyTemplate lists the session start times for each weekday
type WeeklyTemplate map[time.Weekday][]TimeOfDay

var weekdayNames = map[string]time.Weekday{
	"SUN": time.Sunday,
	"MON": time.Monday,
	"TUE": time.Tuesday,
	"WED": time.Wednesday,
	"THU": time.Thursday,
	"FRI": time.Friday,
	"SAT": time.Saturday,
}

// ParseTemplate reads "TUE=11:00,12:00;WED=14:00". Times are sorted per day.
func ParseTemplate(raw string) (WeeklyTemplate, error) {
	tmpl := WeeklyTemplate{}
	for _, dayEntry := range strings.Split(raw, ";") {
		dayEntry = strings.TrimSpace(dayEntry)
		if dayEntry == "" {
			continue
		}
		name, times, ok := strings.Cut(dayEntry, "=")
		if !ok {
			return nil, fmt.Errorf("template entry %q: missing '='", dayEntry)
		}
		weekday, ok := weekdayNames[strings.ToUpper(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("template entry %q: unknown weekday %q", dayEntry, name)
		}
		for _, hm := range strings.Split(times, ",") {
			tod, err := parseTimeOfDay(strings.TrimSpace(hm))
			if err != nil {
				return nil, fmt.Errorf("template entry %q: %w", dayEntry, err)
			}
			tmpl[weekday] = append(tmpl[weekday], tod)
		}
		sort.Slice(tmpl[weekday], func(i, j int) bool {
			a, b := tmpl[weekday][i], tmpl[weekday][j]
			return a.Hour*60+a.Minute < b.Hour*60+b.Minute
		})
	}
	if len(tmpl) == 0 {
		return nil, fmt.Errorf("template %q defines no sessions", raw)
	}
	return tmpl, nil
}

func parseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("time %q: bad hour", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("time %q: bad minute", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// GeneratorConfig describes what slots to create
type GeneratorConfig struct {
	OwnerID           string
	LocationType      string
	LocationValue     string
	WeeksAhead        int
	LowInventoryFloor int
	Location          *time.Location
	Template          WeeklyTemplate
}

// Generate lists the slots the template defines for the days
// [today, today + weeksAhead weeks) in the business timezone, keeping only
// those starting after current.
func Generate(cfg GeneratorConfig, current time.Time) []TimeSlot {
	today := now.With(current.In(cfg.Location)).BeginningOfDay()

	var slots []TimeSlot
	for d := 0; d < cfg.WeeksAhead*7; d++ {
		day := today.AddDate(0, 0, d)
		for _, tod := range cfg.Template[day.Weekday()] {
			start := time.Date(day.Year(), day.Month(), day.Day(), tod.Hour, tod.Minute, 0, 0, cfg.Location)
			if !start.After(current) {
				continue
			}
			slots = append(slots, TimeSlot{
				ID:            SlotID(start, cfg.OwnerID, cfg.Location),
				Start:         start,
				Status:        StatusAvailable,
				OwnerID:       cfg.OwnerID,
				LocationType:  cfg.LocationType,
				LocationValue: cfg.LocationValue,
			})
		}
	}
	return slots
}

// InventoryAdvisor is told when bookable inventory runs low
type InventoryAdvisor interface {
	LowInventory(ctx context.Context, available, floor int) error
}

// InventoryStatus is the result of an inventory check
type InventoryStatus struct {
	Available int  `json:"available"`
	Floor     int  `json:"floor"`
	Low       bool `json:"low"`
}

// Generator stores template slots and removes expired ones
type Generator struct {
	ledger  *Ledger
	cfg     GeneratorConfig
	advisor InventoryAdvisor
	log     *logger.Logger
	now     func() time.Time
}

// NewGenerator creates a generator. advisor may be nil.
func NewGenerator(ledger *Ledger, cfg GeneratorConfig, advisor InventoryAdvisor) *Generator {
	return &Generator{
		ledger:  ledger,
		cfg:     cfg,
		advisor: advisor,
		log:     logger.GetDefault().WithComponent("slot-generator"),
		now:     time.Now,
	}
}

// Location returns the business timezone
func (g *Generator) Location() *time.Location {
	return g.cfg.Location
}

// AddSlot stores one extra slot outside the weekly template. Empty
// location fields fall back to the configured ones.
func (g *Generator) AddSlot(ctx context.Context, start time.Time, locationType, locationValue string) (TimeSlot, error) {
	if !start.After(g.now()) {
		return TimeSlot{}, errs.Validation("The slot must start in the future.")
	}
	if locationType == "" {
		locationType, locationValue = g.cfg.LocationType, g.cfg.LocationValue
	}

	slot := TimeSlot{
		ID:            SlotID(start, g.cfg.OwnerID, g.cfg.Location),
		Start:         start,
		Status:        StatusAvailable,
		OwnerID:       g.cfg.OwnerID,
		LocationType:  locationType,
		LocationValue: locationValue,
	}
	added, err := g.ledger.Insert(ctx, slot)
	if err != nil {
		return TimeSlot{}, err
	}
	if !added {
		return TimeSlot{}, ErrSlotExists
	}

	g.log.InfoContext(ctx, "slot added", "slot_id", slot.ID)
	return slot, nil
}

// RemoveBetween deletes every unreserved slot starting in [from, to].
// Reserved slots are kept and counted as skipped.
func (g *Generator) RemoveBetween(ctx context.Context, from, to time.Time) (RemoveResponse, error) {
	var report RemoveResponse
	list, err := g.ledger.ListBetween(ctx, from, to)
	if err != nil {
		return report, err
	}

	for _, slot := range list {
		err := g.ledger.Remove(ctx, slot.ID)
		switch {
		case err == nil:
			report.Deleted++
		case errors.Is(err, ErrSlotReserved):
			report.Skipped = append(report.Skipped, slot.ID)
		case errors.Is(err, ErrSlotNotFound):
			// removed concurrently
		default:
			return report, err
		}
	}

	g.log.InfoContext(ctx, "slots removed",
		"deleted", report.Deleted,
		"skipped_reserved", len(report.Skipped),
	)
	return report, nil
}

// GenerateAndStore inserts every template slot that does not exist yet.
// Running it twice adds nothing the second time.
func (g *Generator) GenerateAndStore(ctx context.Context) (GenerateResponse, error) {
	var report GenerateResponse
	for _, slot := range Generate(g.cfg, g.now()) {
		added, err := g.ledger.Insert(ctx, slot)
		if err != nil {
			return report, err
		}
		if added {
			report.Added++
		} else {
			report.Skipped++
		}
	}

	g.log.InfoContext(ctx, "slot generation finished",
		"added", report.Added,
		"skipped", report.Skipped,
		"weeks_ahead", g.cfg.WeeksAhead,
	)
	return report, nil
}

// PurgeExpired deletes every slot whose start is not in the future,
// reserved or not
func (g *Generator) PurgeExpired(ctx context.Context) (int, error) {
	deleted, reserved, err := g.ledger.PurgeStartingBefore(ctx, g.now())
	for _, slot := range reserved {
		// The booking record survives; only the slot document is gone
		g.log.WarnContext(ctx, "purged a reserved slot",
			"slot_id", slot.ID,
			"occupant", slot.Occupant,
			"start", slot.Start.In(g.cfg.Location).Format(time.RFC3339),
		)
	}
	if err != nil {
		return deleted, err
	}

	if deleted > 0 {
		g.log.InfoContext(ctx, "expired slots purged", "deleted", deleted)
	}
	return deleted, nil
}

// CheckInventory counts bookable future slots and raises an advisory when
// they fall below the floor. It never generates slots itself.
func (g *Generator) CheckInventory(ctx context.Context) (InventoryStatus, error) {
	available, err := g.ledger.ListAvailable(ctx, g.now(), 0)
	if err != nil {
		return InventoryStatus{}, err
	}

	status := InventoryStatus{
		Available: len(available),
		Floor:     g.cfg.LowInventoryFloor,
		Low:       len(available) < g.cfg.LowInventoryFloor,
	}
	if !status.Low {
		return status, nil
	}

	g.log.WarnContext(ctx, "low slot inventory",
		"available", status.Available,
		"floor", status.Floor,
	)
	if g.advisor != nil {
		if err := g.advisor.LowInventory(ctx, status.Available, status.Floor); err != nil {
			g.log.WarnContext(ctx, "low inventory advisory not delivered", "error", err)
		}
	}
	return status, nil
}
