package notifications

import (
	"context"
	"fmt"
	"time"

	"tutorbook/pkg/logger"
)

// Topics names the destinations for each audience
type Topics struct {
	Booking  string
	Operator string
}

// Publisher turns domain events into notifications. Delivery is best
// effort; callers decide whether a failure matters.
type Publisher struct {
	producer NotificationProducer
	topics   Topics
	location *time.Location
	log      *logger.Logger
}

func NewPublisher(producer NotificationProducer, topics Topics, loc *time.Location) *Publisher {
	return &Publisher{
		producer: producer,
		topics:   topics,
		location: loc,
		log:      logger.GetDefault().WithComponent("notifications"),
	}
}

// NotifyBooking publishes a booking event to the occupant's topic
func (p *Publisher) NotifyBooking(ctx context.Context, event BookingEvent) error {
	start := event.StartTime.In(p.location)
	data := map[string]interface{}{
		"occupant_name":  event.OccupantName,
		"slot_id":        event.SlotID,
		"start_time":     start.Format(time.RFC3339),
		"date_label":     start.Format("Monday, January 02, 2006"),
		"time_label":     start.Format("03:04 PM"),
		"location_type":  event.LocationType,
		"location_value": event.LocationValue,
		"meeting_type":   event.MeetingType,
	}
	if event.PreviousSlotID != "" {
		data["previous_slot_id"] = event.PreviousSlotID
	}

	notification := NewNotificationBuilder().
		WithType(event.Type).
		WithRecipient(event.OccupantEmail, event.OccupantName).
		WithBookingContext(event.BookingID, event.SlotID).
		WithSubject(subjectFor(event.Type, start)).
		WithTemplateData(data).
		Build()

	if err := p.producer.PublishNotification(ctx, p.topics.Booking, notification); err != nil {
		return fmt.Errorf("publish %s for booking %s: %w", event.Type, event.BookingID, err)
	}
	return nil
}

// LowInventory tells operators that few bookable slots remain
func (p *Publisher) LowInventory(ctx context.Context, available, floor int) error {
	notification := NewNotificationBuilder().
		WithType(NotificationTypeLowInventory).
		WithSubject(fmt.Sprintf("Only %d bookable sessions left", available)).
		WithTemplateData(map[string]interface{}{
			"available": available,
			"floor":     floor,
		}).
		Build()

	if err := p.producer.PublishNotification(ctx, p.topics.Operator, notification); err != nil {
		return fmt.Errorf("publish low inventory advisory: %w", err)
	}
	return nil
}

// Close releases the producer
func (p *Publisher) Close() error {
	return p.producer.Close()
}

func subjectFor(t NotificationType, start time.Time) string {
	when := start.Format("Mon Jan 2, 3:04 PM")
	switch t {
	case NotificationTypeBookingConfirmed:
		return "Your tutoring session is booked for " + when
	case NotificationTypeBookingRescheduled:
		return "Your tutoring session moved to " + when
	case NotificationTypeBookingCancelled:
		return "Your tutoring session on " + when + " was cancelled"
	case NotificationTypeBookingCompleted:
		return "Thanks for attending your tutoring session"
	case NotificationTypeSessionReminder:
		return "Reminder: tutoring session today at " + start.Format("3:04 PM")
	default:
		return "Tutoring session update"
	}
}
