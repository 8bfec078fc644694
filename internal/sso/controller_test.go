package sso

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"tutorbook/internal/auth"
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

func newTestRouter(t *testing.T) (*gin.Engine, *auth.TokenIssuer) {
	t.Helper()
	guard, _ := newTestGuard(t)
	issuer := auth.NewTokenIssuer(config.JWTConfig{Secret: "jwt-secret", Issuer: "tutorbook", JWTExpiresIn: time.Hour})

	engine := gin.New()
	NewRouter(NewController(guard, issuer, "/book")).SetupRoutes(engine.Group("/api/v1"))
	return engine, issuer
}

func postHandoff(engine *gin.Engine, origin, token string) *httptest.ResponseRecorder {
	form := url.Values{"token": {token}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/sso/handoff", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestHandoffIssuesSession(t *testing.T) {
	engine, _ := newTestRouter(t)

	w := postHandoff(engine, "https://id.example.edu", sign(t, payload(fixedNow.Unix()+60)))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool            `json:"success"`
		Data    HandoffResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "/book", body.Data.Redirect)

	claims := &auth.JWTClaims{}
	_, err := jwt.ParseWithClaims(body.Data.AccessToken, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("jwt-secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "student@example.edu", claims.Email)
	assert.Equal(t, constants.ROLE_OCCUPANT, claims.Role)
}

func TestHandoffReplayRejected(t *testing.T) {
	engine, _ := newTestRouter(t)
	token := sign(t, payload(fixedNow.Unix()+60))

	require.Equal(t, http.StatusOK, postHandoff(engine, "https://id.example.edu", token).Code)
	w := postHandoff(engine, "https://id.example.edu", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already been used")
}

func TestHandoffChecksOriginBeforeRedeeming(t *testing.T) {
	engine, _ := newTestRouter(t)
	token := sign(t, payload(fixedNow.Unix()+60))

	w := postHandoff(engine, "https://evil.example.com", token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// the nonce was not consumed by the rejected request
	w = postHandoff(engine, "https://id.example.edu", token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandoffMissingToken(t *testing.T) {
	engine, _ := newTestRouter(t)

	w := postHandoff(engine, "https://id.example.edu", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"redirect":"/login"`)
}
