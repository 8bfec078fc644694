package auth

import (
	"strings"
	"time"

	"tutorbook/internal/shared/config"

	"github.com/golang-jwt/jwt/v4"
)

// TokenIssuer signs HS256 session tokens. Verification happens in the
// shared auth middleware.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(cfg config.JWTConfig) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.JWTExpiresIn,
		now:    time.Now,
	}
}

// Issue signs an access token for subject
func (t *TokenIssuer) Issue(subject Subject) (*TokenPair, error) {
	now := t.now()
	email := strings.ToLower(subject.Email)

	claims := JWTClaims{
		UserID:   email,
		Email:    email,
		Name:     subject.Name,
		Role:     subject.Role,
		Provider: subject.Provider,
		Type:     TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			Issuer:    t.issuer,
			Subject:   email,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken: signed,
		ExpiresIn:   int64(t.ttl.Seconds()),
	}, nil
}
