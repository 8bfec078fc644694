package slots

// CreateSlotRequest adds one slot outside the weekly template. StartTime
// is RFC 3339, or "2006-01-02T15:04" in the business timezone.
type CreateSlotRequest struct {
	StartTime     string `json:"startTime" validate:"required"`
	LocationType  string `json:"locationType" validate:"omitempty,oneof=zoom room user_choice"`
	LocationValue string `json:"locationValue" validate:"max=500"`
}

// UpdateLocationRequest changes where a slot's session takes place
type UpdateLocationRequest struct {
	LocationType  string `json:"locationType" validate:"required,oneof=zoom room user_choice"`
	LocationValue string `json:"locationValue" validate:"max=500"`
}
