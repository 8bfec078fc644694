package bookings

import (
	"time"

	"github.com/google/uuid"
)

// Meeting types
const (
	MeetingInPerson = "in-person"
	MeetingZoom     = "zoom"
)

// Booking is a confirmed appointment tied to one time slot
type Booking struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SlotID    string    `gorm:"type:varchar(100);index;not null" json:"slot_id"`
	StartTime time.Time `gorm:"index;not null" json:"start_time"`

	OccupantEmail string `gorm:"type:varchar(254);index;not null" json:"occupant_email"`
	OccupantName  string `gorm:"type:varchar(100);not null" json:"occupant_name"`
	Role          string `gorm:"type:varchar(20);check:role IN ('student', 'faculty', 'staff', 'other');not null" json:"role"`
	Room          string `gorm:"type:varchar(100);not null" json:"room"`
	DeviceID      string `gorm:"type:varchar(100);not null" json:"-"`

	// Intake profile
	Department       string `gorm:"type:varchar(255)" json:"department,omitempty"`
	Phone            string `gorm:"type:varchar(30)" json:"phone,omitempty"`
	ConfidenceLevel  *int   `json:"confidence_level,omitempty"`
	AIFamiliarity    string `gorm:"type:varchar(255)" json:"ai_familiarity,omitempty"`
	AITools          string `gorm:"type:varchar(500)" json:"ai_tools,omitempty"`
	PrimaryUse       string `gorm:"type:varchar(500)" json:"primary_use,omitempty"`
	LearningGoal     string `gorm:"type:varchar(1000)" json:"learning_goal,omitempty"`
	PersonalComments string `gorm:"type:text" json:"personal_comments,omitempty"`
	ResearchConsent  bool   `gorm:"not null;default:false" json:"research_consent"`

	MeetingType   string `gorm:"type:varchar(20);check:meeting_type IN ('zoom', 'in-person');default:'in-person'" json:"meeting_type"`
	AttendeeCount int    `gorm:"not null;default:1" json:"attendee_count"`

	Status      Status     `gorm:"type:varchar(20);check:status IN ('CONFIRMED', 'CANCELLED', 'COMPLETED');default:'CONFIRMED';index" json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName sets the table name for Booking
func (Booking) TableName() string {
	return "bookings"
}

func (b *Booking) IsConfirmed() bool {
	return b.Status == StatusConfirmed
}
