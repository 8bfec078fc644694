package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tutorbook/internal/notifications"
	"tutorbook/internal/shared/errs"
	"tutorbook/internal/slots"
	"tutorbook/pkg/logger"
	"tutorbook/pkg/ratelimit"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	// compensationTimeout bounds each compensating write after the client's
	// context is detached
	compensationTimeout = 5 * time.Second
	notifyTimeout       = 10 * time.Second
)

var (
	// ErrCompensationFailed means a failed operation left a slot in a state
	// that needs manual reconciliation
	ErrCompensationFailed = errs.New(errs.KindReconciliation, "We could not complete your request and it needs manual review. Please contact the tutor.")

	ErrPersistFailed = errs.New(errs.KindStorageUnavailable, "We could not save your booking. Please try again.")
	ErrSlotInPast    = errs.Validation("This time slot is no longer available.")
)

// SlotLedger is the slot state the coordinator drives
type SlotLedger interface {
	Get(ctx context.Context, slotID string) (slots.TimeSlot, error)
	Reserve(ctx context.Context, slotID, occupant string) error
	Release(ctx context.Context, slotID string) error
	ReleaseHeldBy(ctx context.Context, slotID, occupant string) (bool, error)
	Retire(ctx context.Context, slotID string) error
	Reassign(ctx context.Context, oldID, newID, occupant string) error
}

// Limiter counts booking attempts
type Limiter interface {
	Check(ctx context.Context, tier ratelimit.Tier, identity string) ratelimit.Decision
	IsBypassed(identity string) bool
}

// BanList reports suspended occupants
type BanList interface {
	Check(ctx context.Context, email string) (string, bool, error)
}

// Notifier delivers booking events. Failures never affect the booking.
type Notifier interface {
	NotifyBooking(ctx context.Context, event notifications.BookingEvent) error
}

type Service interface {
	Create(ctx context.Context, caller Caller, req CreateBookingRequest) (*CreateBookingResponse, error)
	Reschedule(ctx context.Context, bookingID uuid.UUID, req RescheduleRequest) (*Booking, error)
	Cancel(ctx context.Context, bookingID uuid.UUID) error
	Complete(ctx context.Context, bookingID uuid.UUID) error
	Get(ctx context.Context, bookingID uuid.UUID) (*Booking, error)
	ListForOccupant(ctx context.Context, email string, query BookingListQuery) ([]Booking, int64, error)
	ListAll(ctx context.Context, query BookingListQuery) ([]Booking, int64, error)
	SendReminders(ctx context.Context, day time.Time) (int, error)
	Location() *time.Location
}

type service struct {
	repo      Repository
	ledger    SlotLedger
	limiter   Limiter
	notifier  Notifier
	bans      BanList
	validator *validator.Validate
	location  *time.Location
	log       *logger.Logger
	now       func() time.Time
}

// NewService creates the booking coordinator. limiter, notifier and bans
// may be nil.
func NewService(repo Repository, ledger SlotLedger, limiter Limiter, notifier Notifier, bans BanList, loc *time.Location) Service {
	return &service{
		repo:      repo,
		ledger:    ledger,
		limiter:   limiter,
		notifier:  notifier,
		bans:      bans,
		validator: newValidator(),
		location:  loc,
		log:       logger.GetDefault().WithComponent("bookings"),
		now:       time.Now,
	}
}

func (s *service) Location() *time.Location {
	return s.location
}

// Create validates, rate limits, claims the slot and persists the booking.
// If persisting fails the slot is released before returning, even when the
// client has gone away.
func (s *service) Create(ctx context.Context, caller Caller, req CreateBookingRequest) (*CreateBookingResponse, error) {
	req.normalize()
	if req.DeviceID == "" {
		return nil, ErrMissingDevice
	}
	if err := s.validator.Struct(&req); err != nil {
		return nil, validationError(err)
	}

	if err := s.checkBan(ctx, strings.ToLower(caller.Email)); err != nil {
		return nil, err
	}
	if err := s.checkRateLimits(ctx, caller, req.DeviceID); err != nil {
		return nil, err
	}

	slot, err := s.ledger.Get(ctx, req.SlotID)
	if err != nil {
		return nil, err
	}
	if !slot.Start.After(s.now()) {
		return nil, ErrSlotInPast
	}

	booking := &Booking{
		ID:               uuid.New(),
		SlotID:           slot.ID,
		StartTime:        slot.Start,
		OccupantEmail:    strings.ToLower(caller.Email),
		OccupantName:     req.Name,
		Role:             req.Role,
		Room:             req.Room,
		DeviceID:         req.DeviceID,
		Department:       req.Department,
		Phone:            req.Phone,
		ConfidenceLevel:  req.ConfidenceLevel,
		AIFamiliarity:    req.AIFamiliarity,
		AITools:          req.AITools,
		PrimaryUse:       req.PrimaryUse,
		LearningGoal:     req.LearningGoal,
		PersonalComments: req.PersonalComments,
		ResearchConsent:  req.ResearchConsent,
		MeetingType:      req.MeetingType,
		AttendeeCount:    req.AttendeeCount,
		Status:           StatusConfirmed,
	}

	// The slot's occupant is the booking id, so a slot always points at the
	// record that holds it
	if err := s.ledger.Reserve(ctx, slot.ID, booking.ID.String()); err != nil {
		if errs.KindOf(err) == errs.KindStorageUnavailable {
			return nil, s.undoUncertainClaim(ctx, slot.ID, booking.ID.String(), err)
		}
		return nil, err
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		return nil, s.releaseAfterFailure(ctx, slot.ID, booking.ID.String(), err)
	}

	s.log.LogBookingCreated(ctx, booking.ID.String(), slot.ID, booking.OccupantEmail)
	s.notify(ctx, notifications.NotificationTypeBookingConfirmed, booking, slot, "")

	slot.Status = slots.StatusReserved
	return &CreateBookingResponse{
		BookingID:   booking.ID.String(),
		SlotDetails: slots.ToResponse(slot, s.location, false),
	}, nil
}

// checkBan refuses suspended occupants before any attempt is counted
func (s *service) checkBan(ctx context.Context, email string) error {
	if s.bans == nil {
		return nil
	}
	reason, banned, err := s.bans.Check(ctx, email)
	if err != nil {
		return err
	}
	if banned {
		s.log.WarnContext(ctx, "booking refused for banned user", "occupant", email)
		return errs.New(errs.KindForbidden, "Your account has been suspended. Reason: "+reason)
	}
	return nil
}

// checkRateLimits counts the attempt against the device and then the
// network identity. A device token is required before this point.
func (s *service) checkRateLimits(ctx context.Context, caller Caller, deviceID string) error {
	if s.limiter == nil || s.limiter.IsBypassed(caller.Email) {
		return nil
	}

	identities := []string{"device:" + deviceID}
	if caller.ClientIP != "" {
		identities = append(identities, "ip:"+caller.ClientIP)
	}
	for _, identity := range identities {
		decision := s.limiter.Check(ctx, ratelimit.TierBooking, identity)
		if !decision.Allowed {
			s.log.LogRateLimitExceeded(ctx, string(ratelimit.TierBooking), identity, decision.RetryAfterSeconds)
			return errs.RateLimited(decision.Message, decision.RetryAfterSeconds)
		}
	}
	return nil
}

// releaseAfterFailure frees a slot claimed for a booking that could not be
// saved. It runs on a context detached from the client.
func (s *service) releaseAfterFailure(ctx context.Context, slotID, occupant string, cause error) error {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := s.ledger.Release(releaseCtx, slotID); err != nil {
		s.log.LogReconciliationRequired(ctx, slotID, occupant, err)
		return fmt.Errorf("%w: persist: %v; release: %v", ErrCompensationFailed, cause, err)
	}

	s.log.WarnContext(ctx, "booking not saved, slot released",
		"slot_id", slotID,
		"error", cause,
	)
	return fmt.Errorf("%w: %v", ErrPersistFailed, cause)
}

// undoUncertainClaim handles a claim whose outcome is unknown: the write
// may have landed even though the reply was lost. The slot is released
// only if it is held by this booking.
func (s *service) undoUncertainClaim(ctx context.Context, slotID, occupant string, cause error) error {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	released, err := s.ledger.ReleaseHeldBy(releaseCtx, slotID, occupant)
	if err != nil {
		s.log.LogReconciliationRequired(ctx, slotID, occupant, err)
		return fmt.Errorf("%w: reserve: %v; release: %v", ErrCompensationFailed, cause, err)
	}
	if released {
		s.log.WarnContext(ctx, "claim landed without a reply, slot released",
			"slot_id", slotID,
			"occupant", occupant,
			"error", cause,
		)
	}
	return cause
}

// Reschedule moves a confirmed booking to another slot. If the new slot is
// taken the booking stays on its old slot.
func (s *service) Reschedule(ctx context.Context, bookingID uuid.UUID, req RescheduleRequest) (*Booking, error) {
	req.SlotID = strings.TrimSpace(req.SlotID)
	if err := s.validator.Struct(&req); err != nil {
		return nil, validationError(err)
	}

	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsConfirmed() {
		return nil, ErrBookingNotActive
	}
	if booking.SlotID == req.SlotID {
		return booking, nil
	}

	target, err := s.ledger.Get(ctx, req.SlotID)
	if err != nil {
		return nil, err
	}
	if !target.Start.After(s.now()) {
		return nil, ErrSlotInPast
	}

	occupant := booking.ID.String()
	oldSlotID := booking.SlotID
	if err := s.ledger.Reassign(ctx, oldSlotID, target.ID, occupant); err != nil {
		if errors.Is(err, slots.ErrRestoreFailed) {
			s.log.LogReconciliationRequired(ctx, oldSlotID, occupant, err)
			return nil, fmt.Errorf("%w: %v", ErrCompensationFailed, err)
		}
		return nil, err
	}

	if err := s.repo.UpdateSlot(ctx, booking.ID, target.ID, target.Start); err != nil {
		return nil, s.reassignBackAfterFailure(ctx, target.ID, oldSlotID, occupant, err)
	}

	booking.SlotID = target.ID
	booking.StartTime = target.Start
	s.log.InfoContext(ctx, "booking rescheduled",
		"booking_id", booking.ID.String(),
		"from_slot_id", oldSlotID,
		"to_slot_id", target.ID,
	)
	s.notify(ctx, notifications.NotificationTypeBookingRescheduled, booking, target, oldSlotID)
	return booking, nil
}

func (s *service) reassignBackAfterFailure(ctx context.Context, newSlotID, oldSlotID, occupant string, cause error) error {
	restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := s.ledger.Reassign(restoreCtx, newSlotID, oldSlotID, occupant); err != nil {
		s.log.LogReconciliationRequired(ctx, oldSlotID, occupant, err)
		return fmt.Errorf("%w: persist: %v; restore: %v", ErrCompensationFailed, cause, err)
	}
	return fmt.Errorf("%w: %v", ErrPersistFailed, cause)
}

// Cancel marks a booking cancelled and frees its slot
func (s *service) Cancel(ctx context.Context, bookingID uuid.UUID) error {
	booking, err := s.finish(ctx, bookingID, StatusCancelled)
	if err != nil {
		return err
	}

	if err := s.settleSlot(ctx, booking, s.ledger.Release); err != nil {
		return err
	}

	s.log.LogBookingCancelled(ctx, booking.ID.String(), booking.SlotID)
	s.notify(ctx, notifications.NotificationTypeBookingCancelled, booking, slots.TimeSlot{ID: booking.SlotID, Start: booking.StartTime}, "")
	return nil
}

// Complete marks a booking completed and retires its slot
func (s *service) Complete(ctx context.Context, bookingID uuid.UUID) error {
	booking, err := s.finish(ctx, bookingID, StatusCompleted)
	if err != nil {
		return err
	}

	if err := s.settleSlot(ctx, booking, s.ledger.Retire); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "booking completed",
		"booking_id", booking.ID.String(),
		"slot_id", booking.SlotID,
	)
	s.notify(ctx, notifications.NotificationTypeBookingCompleted, booking, slots.TimeSlot{ID: booking.SlotID, Start: booking.StartTime}, "")
	return nil
}

// finish moves a confirmed booking to a final status. The record changes
// first so a slot is never freed while a confirmed booking still holds it.
func (s *service) finish(ctx context.Context, bookingID uuid.UUID, status Status) (*Booking, error) {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsConfirmed() {
		return nil, ErrBookingNotActive
	}

	at := s.now()
	if err := s.repo.UpdateStatus(ctx, booking.ID, status, at); err != nil {
		return nil, err
	}
	booking.Status = status
	return booking, nil
}

// settleSlot applies the slot transition for a finished booking. A failure
// leaves the slot reserved with no live booking.
func (s *service) settleSlot(ctx context.Context, booking *Booking, transition func(context.Context, string) error) error {
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := transition(settleCtx, booking.SlotID); err != nil {
		s.log.LogReconciliationRequired(ctx, booking.SlotID, booking.ID.String(), err)
		return fmt.Errorf("%w: booking %s is %s but slot %s was not updated: %v",
			ErrCompensationFailed, booking.ID, booking.Status, booking.SlotID, err)
	}
	return nil
}

func (s *service) Get(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	return s.repo.GetByID(ctx, bookingID)
}

func (s *service) ListForOccupant(ctx context.Context, email string, query BookingListQuery) ([]Booking, int64, error) {
	return s.repo.ListByOccupant(ctx, strings.ToLower(email), query)
}

func (s *service) ListAll(ctx context.Context, query BookingListQuery) ([]Booking, int64, error) {
	return s.repo.List(ctx, query)
}

// SendReminders publishes a reminder for every confirmed booking starting
// on day (business timezone). It returns how many were published.
func (s *service) SendReminders(ctx context.Context, day time.Time) (int, error) {
	local := day.In(s.location)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
	to := from.AddDate(0, 0, 1)

	due, err := s.repo.ListConfirmedBetween(ctx, from, to)
	if err != nil {
		return 0, err
	}
	if s.notifier == nil {
		return 0, nil
	}

	sent := 0
	var failed []error
	for i := range due {
		b := &due[i]
		event := bookingEvent(notifications.NotificationTypeSessionReminder, b, slots.TimeSlot{ID: b.SlotID, Start: b.StartTime}, "")
		if err := s.notifier.NotifyBooking(ctx, event); err != nil {
			failed = append(failed, err)
			continue
		}
		sent++
	}
	return sent, errors.Join(failed...)
}

// notify publishes in the background so the caller's response never waits
// on the broker
func (s *service) notify(ctx context.Context, t notifications.NotificationType, b *Booking, slot slots.TimeSlot, previousSlotID string) {
	if s.notifier == nil {
		return
	}
	event := bookingEvent(t, b, slot, previousSlotID)
	go func() {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyBooking(notifyCtx, event); err != nil {
			s.log.WarnContext(notifyCtx, "booking notification not delivered",
				"booking_id", event.BookingID.String(),
				"type", string(t),
				"error", err,
			)
		}
	}()
}

func bookingEvent(t notifications.NotificationType, b *Booking, slot slots.TimeSlot, previousSlotID string) notifications.BookingEvent {
	return notifications.BookingEvent{
		Type:           t,
		BookingID:      b.ID,
		SlotID:         slot.ID,
		PreviousSlotID: previousSlotID,
		OccupantEmail:  b.OccupantEmail,
		OccupantName:   b.OccupantName,
		StartTime:      slot.Start,
		LocationType:   slot.LocationType,
		LocationValue:  slot.LocationValue,
		MeetingType:    b.MeetingType,
	}
}
