package bookings

// CreateBookingRequest is the booking form
type CreateBookingRequest struct {
	SlotID   string `json:"slotId" validate:"required,max=100,slotid"`
	Name     string `json:"name" validate:"required,min=2,max=100,personname"`
	Role     string `json:"role" validate:"required,oneof=student faculty staff other"`
	Room     string `json:"room" validate:"required,min=1,max=100"`
	DeviceID string `json:"deviceId" validate:"required,max=100,deviceid"`

	Department       string `json:"department" validate:"max=255"`
	Phone            string `json:"phone" validate:"max=30"`
	ConfidenceLevel  *int   `json:"confidenceLevel" validate:"omitempty,min=1,max=5"`
	AIFamiliarity    string `json:"aiFamiliarity" validate:"max=255"`
	AITools          string `json:"aiTools" validate:"max=500"`
	PrimaryUse       string `json:"primaryUse" validate:"max=500"`
	LearningGoal     string `json:"learningGoal" validate:"max=1000"`
	PersonalComments string `json:"personalComments" validate:"max=10000"`
	ResearchConsent  bool   `json:"researchConsent"`

	MeetingType   string `json:"meetingType" validate:"omitempty,oneof=zoom in-person"`
	AttendeeCount int    `json:"attendeeCount" validate:"omitempty,min=1,max=50"`
}

// RescheduleRequest moves a booking to another slot
type RescheduleRequest struct {
	SlotID string `json:"slotId" validate:"required,max=100,slotid"`
}

// BookingListQuery filters booking listings
type BookingListQuery struct {
	Status string `form:"status"`
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
}

// Caller is the authenticated requester of a booking operation
type Caller struct {
	Email    string
	ClientIP string
}
