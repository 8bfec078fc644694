package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tutorbook/internal/shared/errs"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func record(err error) (*httptest.ResponseRecorder, ErrorResponse) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	RespondError(c, err)

	var body ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestRespondErrorRateLimited(t *testing.T) {
	w, body := record(errs.RateLimited("Too many booking attempts.", 61))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "61", w.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", body.Error)
	assert.Equal(t, 61, body.RetryAfterSeconds)
	assert.False(t, body.Success)
}

func TestRespondErrorUnauthenticatedCarriesRedirect(t *testing.T) {
	w, body := record(errs.New(errs.KindUnauthenticated, "Please sign in."))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, LoginRedirect, body.Redirect)
}

func TestRespondErrorNeverLeaksInternals(t *testing.T) {
	w, body := record(errors.New("pq: duplicate key value violates unique constraint"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, body.Message, "pq")
}

func TestRespondSuccessFlattensPayload(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	RespondSuccess(c, http.StatusCreated, gin.H{"bookingId": "b-1"})

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "b-1", body["bookingId"])
}
