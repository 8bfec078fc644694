package bans

import (
	"context"
	"errors"
	"fmt"

	"tutorbook/internal/shared/errs"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrBanNotFound = errs.New(errs.KindNotFound, "This user is not banned.")

type Repository interface {
	Get(ctx context.Context, email string) (*Ban, error)
	// Upsert replaces the reason when the email is already banned
	Upsert(ctx context.Context, ban *Ban) error
	Delete(ctx context.Context, email string) error
	List(ctx context.Context) ([]Ban, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, email string) (*Ban, error) {
	var ban Ban
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&ban).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBanNotFound
		}
		return nil, fmt.Errorf("get ban: %w", errs.Storage(err))
	}
	return &ban, nil
}

func (r *repository) Upsert(ctx context.Context, ban *Ban) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason", "banned_by", "updated_at"}),
	}).Create(ban).Error
	if err != nil {
		return fmt.Errorf("save ban: %w", errs.Storage(err))
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, email string) error {
	result := r.db.WithContext(ctx).Where("email = ?", email).Delete(&Ban{})
	if result.Error != nil {
		return fmt.Errorf("delete ban: %w", errs.Storage(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrBanNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context) ([]Ban, error) {
	var list []Ban
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list bans: %w", errs.Storage(err))
	}
	return list, nil
}
