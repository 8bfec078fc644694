package middleware

import (
	"strings"
	"time"

	"tutorbook/internal/shared/config"
	"tutorbook/internal/shared/constants"
	"tutorbook/internal/shared/errs"
	"tutorbook/internal/shared/utils/response"
	"tutorbook/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

var (
	errMissingToken = errs.New(errs.KindUnauthenticated, "Please sign in to continue.")
	errInvalidToken = errs.New(errs.KindUnauthenticated, "Your session has expired. Please sign in again.")
	errForbidden    = errs.New(errs.KindForbidden, "Insufficient permissions")
)

// JWTAuthWithConfig rejects requests without a valid access token
func JWTAuthWithConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AbortWithError(c, errMissingToken)
			return
		}

		claims, ok := parseBearer(authHeader, cfg.JWT.Secret)
		if !ok {
			response.AbortWithError(c, errInvalidToken)
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// RequireRole middleware checks if user has required role
func RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString(constants.CTX_USER_ROLE)
		if userRole == "" {
			response.AbortWithError(c, errMissingToken)
			return
		}

		if userRole != requiredRole {
			response.AbortWithError(c, errForbidden)
			return
		}
		c.Next()
	}
}

// RequireAdmin middleware that requires admin role
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(constants.ROLE_ADMIN)
}

// OptionalAuthWithConfig validates JWT token if present but doesn't require it
func OptionalAuthWithConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := parseBearer(c.GetHeader("Authorization"), cfg.JWT.Secret); ok {
			setIdentity(c, claims)
		}
		c.Next()
	}
}

// RequestLogger logs every request once it completes
func RequestLogger(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.LogHTTPRequest(c, time.Since(start))
	}
}

func parseBearer(authHeader, secret string) (jwt.MapClaims, bool) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, false
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}
	if tokenType, ok := claims["type"]; !ok || tokenType != "access" {
		return nil, false
	}
	if email, _ := claims["email"].(string); email == "" {
		return nil, false
	}
	return claims, true
}

func setIdentity(c *gin.Context, claims jwt.MapClaims) {
	for key, claim := range map[string]string{
		constants.CTX_USER_ID:    "user_id",
		constants.CTX_USER_EMAIL: "email",
		constants.CTX_USER_ROLE:  "role",
		constants.CTX_USER_NAME:  "name",
	} {
		if v, ok := claims[claim].(string); ok {
			c.Set(key, v)
		}
	}
}
