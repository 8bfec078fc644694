package auth

import (
	"github.com/golang-jwt/jwt/v4"
)

// TokenTypeAccess is the only token type the API accepts
const TokenTypeAccess = "access"

// JWTClaims represents JWT token claims
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role"`
	Provider string `json:"provider,omitempty"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

// Subject is who a session token is issued to
type Subject struct {
	Email    string
	Name     string
	Role     string
	Provider string
}
