package slots

import (
	"fmt"
	"regexp"
	"time"

	"tutorbook/internal/shared/errs"
)

// slot ids are YYYYMMDDHHMM_<owner> in the business timezone
const slotIDLayout = "200601021504"

const maxSlotIDLength = 100

var slotIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Hash field names of a slot document
const (
	fieldStart         = "start"
	fieldStatus        = "status"
	fieldOccupant      = "occupant"
	fieldOwner         = "owner"
	fieldLocationType  = "location_type"
	fieldLocationValue = "location_value"
)

var (
	ErrSlotConflict = errs.New(errs.KindConflict, "This time slot has already been booked. Please choose another time.")
	ErrSlotNotFound = errs.New(errs.KindNotFound, "Time slot not found.")
	ErrInvalidID    = errs.Validation("Invalid time slot.")
	ErrSlotExists   = errs.New(errs.KindConflict, "A time slot already exists at that time.")
	ErrSlotReserved = errs.New(errs.KindConflict, "This time slot is booked. Cancel the booking before deleting the slot.")

	// ErrRestoreFailed means a reassignment could not claim the new slot
	// and then lost the old one too. The occupant holds no slot.
	ErrRestoreFailed = errs.New(errs.KindReconciliation, "Your original time slot could not be restored. Please contact the tutor.")
)

// TimeSlot is one bookable appointment window
type TimeSlot struct {
	ID            string
	Start         time.Time
	Status        Status
	Occupant      string
	OwnerID       string
	LocationType  string
	LocationValue string
}

// SlotID derives the deterministic id for a start instant and owner
func SlotID(start time.Time, ownerID string, loc *time.Location) string {
	return start.In(loc).Format(slotIDLayout) + "_" + ownerID
}

// ValidateID checks the shape of a client-supplied slot id
func ValidateID(id string) error {
	if id == "" || len(id) > maxSlotIDLength || !slotIDPattern.MatchString(id) {
		return ErrInvalidID
	}
	return nil
}

// fields encodes the slot as a hash document
func (s TimeSlot) fields() map[string]string {
	f := map[string]string{
		fieldStart:         s.Start.UTC().Format(time.RFC3339),
		fieldStatus:        string(s.Status),
		fieldOwner:         s.OwnerID,
		fieldLocationType:  s.LocationType,
		fieldLocationValue: s.LocationValue,
	}
	if s.Occupant != "" {
		f[fieldOccupant] = s.Occupant
	}
	return f
}

// score orders slots in the start-time index
func (s TimeSlot) score() float64 {
	return float64(s.Start.UnixMilli())
}

func slotFromFields(id string, f map[string]string) (TimeSlot, error) {
	start, err := time.Parse(time.RFC3339, f[fieldStart])
	if err != nil {
		return TimeSlot{}, fmt.Errorf("slot %s has bad start %q: %w", id, f[fieldStart], err)
	}
	status := Status(f[fieldStatus])
	if !status.IsValid() {
		return TimeSlot{}, fmt.Errorf("slot %s has bad status %q", id, f[fieldStatus])
	}
	return TimeSlot{
		ID:            id,
		Start:         start,
		Status:        status,
		Occupant:      f[fieldOccupant],
		OwnerID:       f[fieldOwner],
		LocationType:  f[fieldLocationType],
		LocationValue: f[fieldLocationValue],
	}, nil
}

// scoreFor converts an instant into an index score
func scoreFor(t time.Time) float64 {
	return float64(t.UnixMilli())
}
