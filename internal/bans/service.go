package bans

import (
	"context"
	"errors"
	"strings"

	"tutorbook/internal/shared/errs"
	"tutorbook/pkg/logger"
)

type Service interface {
	Ban(ctx context.Context, email, reason, bannedBy string) (*Ban, error)
	Unban(ctx context.Context, email string) error
	List(ctx context.Context) ([]Ban, error)
	// Check reports whether email is banned and why
	Check(ctx context.Context, email string) (string, bool, error)
}

type service struct {
	repo Repository
	log  *logger.Logger
}

func NewService(repo Repository) Service {
	return &service{
		repo: repo,
		log:  logger.GetDefault().WithComponent("bans"),
	}
}

func (s *service) Ban(ctx context.Context, email, reason, bannedBy string) (*Ban, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, errs.Validation("email is required.")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultReason
	}

	ban := &Ban{Email: email, Reason: reason, BannedBy: normalizeEmail(bannedBy)}
	if err := s.repo.Upsert(ctx, ban); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "user banned", "email", email, "banned_by", ban.BannedBy)
	return ban, nil
}

func (s *service) Unban(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := s.repo.Delete(ctx, email); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "user unbanned", "email", email)
	return nil
}

func (s *service) List(ctx context.Context) ([]Ban, error) {
	return s.repo.List(ctx)
}

func (s *service) Check(ctx context.Context, email string) (string, bool, error) {
	ban, err := s.repo.Get(ctx, normalizeEmail(email))
	if errors.Is(err, ErrBanNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return ban.Reason, true, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
