package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tutorbook/internal/shared/config"
	"tutorbook/internal/shared/constants"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testConfig = &config.Config{JWT: config.JWTConfig{Secret: "middleware-secret"}}

func bearer(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testConfig.JWT.Secret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func accessClaims(role string) jwt.MapClaims {
	return jwt.MapClaims{
		"user_id": "a@example.edu",
		"email":   "a@example.edu",
		"role":    role,
		"type":    "access",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
}

func newEngine() *gin.Engine {
	engine := gin.New()
	engine.GET("/mine", JWTAuthWithConfig(testConfig), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(constants.CTX_USER_EMAIL))
	})
	engine.GET("/admin", JWTAuthWithConfig(testConfig), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	engine.GET("/open", OptionalAuthWithConfig(testConfig), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(constants.CTX_USER_EMAIL))
	})
	return engine
}

func get(engine *gin.Engine, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	engine := newEngine()

	w := get(engine, "/mine", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"redirect":"/login"`)

	w = get(engine, "/mine", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(engine, "/mine", bearer(t, accessClaims(constants.ROLE_OCCUPANT)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@example.edu", w.Body.String())
}

func TestJWTAuthRejectsExpiredAndWrongType(t *testing.T) {
	engine := newEngine()

	expired := accessClaims(constants.ROLE_OCCUPANT)
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	assert.Equal(t, http.StatusUnauthorized, get(engine, "/mine", bearer(t, expired)).Code)

	refresh := accessClaims(constants.ROLE_OCCUPANT)
	refresh["type"] = "refresh"
	assert.Equal(t, http.StatusUnauthorized, get(engine, "/mine", bearer(t, refresh)).Code)
}

func TestRequireAdmin(t *testing.T) {
	engine := newEngine()

	assert.Equal(t, http.StatusForbidden, get(engine, "/admin", bearer(t, accessClaims(constants.ROLE_OCCUPANT))).Code)
	assert.Equal(t, http.StatusNoContent, get(engine, "/admin", bearer(t, accessClaims(constants.ROLE_ADMIN))).Code)
}

func TestOptionalAuth(t *testing.T) {
	engine := newEngine()

	w := get(engine, "/open", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	w = get(engine, "/open", "Bearer garbage")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	w = get(engine, "/open", bearer(t, accessClaims(constants.ROLE_OCCUPANT)))
	assert.Equal(t, "a@example.edu", w.Body.String())
}
