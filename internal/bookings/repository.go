package bookings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"tutorbook/internal/shared/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrBookingNotFound  = errs.New(errs.KindNotFound, "Booking not found.")
	ErrBookingNotActive = errs.Validation("This booking is no longer active.")
)

type Repository interface {
	Create(ctx context.Context, booking *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// UpdateSlot and UpdateStatus only touch CONFIRMED bookings
	UpdateSlot(ctx context.Context, id uuid.UUID, slotID string, start time.Time) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time) error

	ListByOccupant(ctx context.Context, email string, query BookingListQuery) ([]Booking, int64, error)
	List(ctx context.Context, query BookingListQuery) ([]Booking, int64, error)
	ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]Booking, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, booking *Booking) error {
	if err := r.db.WithContext(ctx).Create(booking).Error; err != nil {
		return fmt.Errorf("create booking: %w", errs.Storage(err))
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("get booking: %w", errs.Storage(err))
	}
	return &booking, nil
}

func (r *repository) UpdateSlot(ctx context.Context, id uuid.UUID, slotID string, start time.Time) error {
	return r.updateConfirmed(ctx, id, map[string]interface{}{
		"slot_id":    slotID,
		"start_time": start,
		"updated_at": time.Now(),
	})
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": at,
	}
	switch status {
	case StatusCancelled:
		updates["cancelled_at"] = at
	case StatusCompleted:
		updates["completed_at"] = at
	}
	return r.updateConfirmed(ctx, id, updates)
}

// updateConfirmed applies updates only while the booking is CONFIRMED, so
// two admins acting on one booking cannot both succeed
func (r *repository) updateConfirmed(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ? AND status = ?", id, StatusConfirmed).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update booking: %w", errs.Storage(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrBookingNotActive
	}
	return nil
}

func (r *repository) ListByOccupant(ctx context.Context, email string, query BookingListQuery) ([]Booking, int64, error) {
	base := r.db.WithContext(ctx).Model(&Booking{}).Where("occupant_email = ?", email)
	return r.page(base, query)
}

func (r *repository) List(ctx context.Context, query BookingListQuery) ([]Booking, int64, error) {
	return r.page(r.db.WithContext(ctx).Model(&Booking{}), query)
}

func (r *repository) ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]Booking, error) {
	var bookings []Booking
	err := r.db.WithContext(ctx).
		Where("status = ?", StatusConfirmed).
		Where("start_time >= ? AND start_time < ?", from, to).
		Order("start_time ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", errs.Storage(err))
	}
	return bookings, nil
}

func (r *repository) page(base *gorm.DB, query BookingListQuery) ([]Booking, int64, error) {
	query = query.normalized()
	if query.Status != "" {
		base = base.Where("status = ?", query.Status)
	}

	var totalCount int64
	if err := base.Count(&totalCount).Error; err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", errs.Storage(err))
	}

	var bookings []Booking
	offset := (query.Page - 1) * query.Limit
	err := base.
		Order("start_time DESC").
		Offset(offset).
		Limit(query.Limit).
		Find(&bookings).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", errs.Storage(err))
	}
	return bookings, totalCount, nil
}

func (q BookingListQuery) normalized() BookingListQuery {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if !Status(q.Status).IsValid() {
		q.Status = ""
	}
	return q
}

// CalculateTotalPages returns the page count for totalCount rows
func CalculateTotalPages(totalCount int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(totalCount) / float64(limit)))
}
