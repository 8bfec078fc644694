package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeBookingConfirmed   NotificationType = "BOOKING_CONFIRMED"
	NotificationTypeBookingRescheduled NotificationType = "BOOKING_RESCHEDULED"
	NotificationTypeBookingCancelled   NotificationType = "BOOKING_CANCELLED"
	NotificationTypeBookingCompleted   NotificationType = "BOOKING_COMPLETED"
	NotificationTypeSessionReminder    NotificationType = "SESSION_REMINDER"
	NotificationTypeLowInventory       NotificationType = "LOW_INVENTORY"
)

type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "LOW"
	NotificationPriorityMedium NotificationPriority = "MEDIUM"
	NotificationPriorityHigh   NotificationPriority = "HIGH"
)

// Notification is the message handed to the delivery pipeline. Rendering
// and sending happen downstream.
type Notification struct {
	ID       uuid.UUID            `json:"id"`
	Type     NotificationType     `json:"type"`
	Priority NotificationPriority `json:"priority"`

	RecipientEmail string `json:"recipient_email,omitempty"`
	RecipientName  string `json:"recipient_name,omitempty"`

	Subject      string                 `json:"subject"`
	TemplateData map[string]interface{} `json:"template_data"`

	BookingID *uuid.UUID `json:"booking_id,omitempty"`
	SlotID    string     `json:"slot_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// BookingEvent describes a booking change worth telling the occupant about
type BookingEvent struct {
	Type           NotificationType
	BookingID      uuid.UUID
	SlotID         string
	PreviousSlotID string
	OccupantEmail  string
	OccupantName   string
	StartTime      time.Time
	LocationType   string
	LocationValue  string
	MeetingType    string
}

type NotificationBuilder struct {
	notification *Notification
}

func NewNotificationBuilder() *NotificationBuilder {
	return &NotificationBuilder{
		notification: &Notification{
			ID:           uuid.New(),
			Priority:     NotificationPriorityMedium,
			CreatedAt:    time.Now(),
			TemplateData: make(map[string]interface{}),
		},
	}
}

func (nb *NotificationBuilder) WithType(notType NotificationType) *NotificationBuilder {
	nb.notification.Type = notType
	nb.notification.Priority = GetDefaultPriority(notType)
	return nb
}

func (nb *NotificationBuilder) WithRecipient(email, name string) *NotificationBuilder {
	nb.notification.RecipientEmail = email
	nb.notification.RecipientName = name
	return nb
}

func (nb *NotificationBuilder) WithSubject(subject string) *NotificationBuilder {
	nb.notification.Subject = subject
	return nb
}

func (nb *NotificationBuilder) WithTemplateData(data map[string]interface{}) *NotificationBuilder {
	for k, v := range data {
		nb.notification.TemplateData[k] = v
	}
	return nb
}

func (nb *NotificationBuilder) WithBookingContext(bookingID uuid.UUID, slotID string) *NotificationBuilder {
	nb.notification.BookingID = &bookingID
	nb.notification.SlotID = slotID
	return nb
}

func (nb *NotificationBuilder) Build() *Notification {
	return nb.notification
}

func GetDefaultPriority(notType NotificationType) NotificationPriority {
	switch notType {
	case NotificationTypeBookingConfirmed, NotificationTypeBookingRescheduled, NotificationTypeBookingCancelled:
		return NotificationPriorityHigh
	case NotificationTypeLowInventory:
		return NotificationPriorityLow
	default:
		return NotificationPriorityMedium
	}
}

// GetPartitionKey keeps one recipient's messages in order
func (n *Notification) GetPartitionKey() string {
	if n.RecipientEmail != "" {
		return n.RecipientEmail
	}
	return string(n.Type)
}

func (n *Notification) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}
