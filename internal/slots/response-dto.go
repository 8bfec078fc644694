package slots

import "time"

// Label layouts used in client responses
const (
	DayLabelLayout  = "Monday"
	DateLabelLayout = "January 02, 2006"
	TimeLabelLayout = "03:04 PM"
)

// SlotResponse is the public JSON form of a slot, labelled in the business
// timezone
type SlotResponse struct {
	ID            string    `json:"id"`
	StartTime     time.Time `json:"startTime"`
	DayName       string    `json:"dayName"`
	DateLabel     string    `json:"dateLabel"`
	TimeLabel     string    `json:"timeLabel"`
	Status        Status    `json:"status"`
	Occupant      string    `json:"occupant,omitempty"`
	LocationType  string    `json:"locationType"`
	LocationValue string    `json:"locationValue"`
}

// ToResponse renders slot for clients. Occupant is included only when
// withOccupant is set.
func ToResponse(slot TimeSlot, loc *time.Location, withOccupant bool) SlotResponse {
	local := slot.Start.In(loc)
	resp := SlotResponse{
		ID:            slot.ID,
		StartTime:     local,
		DayName:       local.Format(DayLabelLayout),
		DateLabel:     local.Format(DateLabelLayout),
		TimeLabel:     local.Format(TimeLabelLayout),
		Status:        slot.Status,
		LocationType:  slot.LocationType,
		LocationValue: slot.LocationValue,
	}
	if withOccupant {
		resp.Occupant = slot.Occupant
	}
	return resp
}

// ToResponses renders a list of slots
func ToResponses(list []TimeSlot, loc *time.Location, withOccupant bool) []SlotResponse {
	out := make([]SlotResponse, len(list))
	for i, s := range list {
		out[i] = ToResponse(s, loc, withOccupant)
	}
	return out
}

// GenerateResponse reports a generation run
type GenerateResponse struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// PurgeResponse reports a cleanup run
type PurgeResponse struct {
	Deleted int `json:"deleted"`
}

// RemoveResponse reports a range deletion. Reserved slots are never removed.
type RemoveResponse struct {
	Deleted int      `json:"deleted"`
	Skipped []string `json:"skippedReserved"`
}
