package bookings

import (
	"time"

	"tutorbook/internal/slots"
)

// CreateBookingResponse is the result of a successful booking
type CreateBookingResponse struct {
	BookingID   string             `json:"bookingId"`
	SlotDetails slots.SlotResponse `json:"slotDetails"`
}

// BookingResponse is one booking in listings
type BookingResponse struct {
	ID            string     `json:"id"`
	SlotID        string     `json:"slotId"`
	StartTime     time.Time  `json:"startTime"`
	DateLabel     string     `json:"dateLabel"`
	TimeLabel     string     `json:"timeLabel"`
	OccupantEmail string     `json:"occupantEmail"`
	OccupantName  string     `json:"occupantName"`
	Role          string     `json:"role"`
	Room          string     `json:"room"`
	MeetingType   string     `json:"meetingType"`
	AttendeeCount int        `json:"attendeeCount"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	CancelledAt   *time.Time `json:"cancelledAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// BookingListResponse is a page of bookings
type BookingListResponse struct {
	Bookings   []BookingResponse `json:"bookings"`
	TotalCount int64             `json:"totalCount"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"totalPages"`
}

func toBookingResponse(b Booking, loc *time.Location) BookingResponse {
	start := b.StartTime.In(loc)
	return BookingResponse{
		ID:            b.ID.String(),
		SlotID:        b.SlotID,
		StartTime:     start,
		DateLabel:     start.Format(slots.DateLabelLayout),
		TimeLabel:     start.Format(slots.TimeLabelLayout),
		OccupantEmail: b.OccupantEmail,
		OccupantName:  b.OccupantName,
		Role:          b.Role,
		Room:          b.Room,
		MeetingType:   b.MeetingType,
		AttendeeCount: b.AttendeeCount,
		Status:        b.Status,
		CreatedAt:     b.CreatedAt,
		CancelledAt:   b.CancelledAt,
		CompletedAt:   b.CompletedAt,
	}
}
