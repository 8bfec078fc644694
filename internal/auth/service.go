package auth

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"tutorbook/internal/shared/config"
	"tutorbook/internal/shared/constants"
	"tutorbook/internal/shared/errs"
	"tutorbook/pkg/logger"
)

var ErrInvalidCredentials = errs.New(errs.KindUnauthenticated, "Invalid email or password")

type Service interface {
	AdminLogin(ctx context.Context, req *AdminLoginRequest) (*AuthResponse, error)
}

type service struct {
	issuer *TokenIssuer
	admins map[string]string
	// compared against when the email is unknown so both paths cost a bcrypt
	decoyHash []byte
	log       *logger.Logger
}

func NewService(issuer *TokenIssuer, admins []config.AdminAccount) Service {
	accounts := make(map[string]string, len(admins))
	for _, a := range admins {
		accounts[strings.ToLower(a.Email)] = a.PasswordHash
	}
	decoy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

	return &service{
		issuer:    issuer,
		admins:    accounts,
		decoyHash: decoy,
		log:       logger.GetDefault().WithComponent("auth"),
	}
}

func (s *service) AdminLogin(ctx context.Context, req *AdminLoginRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	hash, ok := s.admins[email]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.decoyHash, []byte(req.Password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	tokenPair, err := s.issuer.Issue(Subject{Email: email, Role: constants.ROLE_ADMIN})
	if err != nil {
		return nil, err
	}

	s.log.LogAuthSuccess(ctx, email, "admin_password")
	return &AuthResponse{
		User: UserResponse{
			Email: email,
			Role:  constants.ROLE_ADMIN,
		},
		AccessToken: tokenPair.AccessToken,
		ExpiresIn:   tokenPair.ExpiresIn,
	}, nil
}
