package bookings

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tutorbook/internal/shared/constants"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signedIn stands in for the JWT middleware
func signedIn(email, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if email != "" {
			c.Set(constants.CTX_USER_EMAIL, email)
			c.Set(constants.CTX_USER_ROLE, role)
		}
		c.Next()
	}
}

func newBookingRouter(env *testEnv, email, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	c := NewController(env.svc)

	r := gin.New()
	r.Use(signedIn(email, role))
	r.POST("/bookings", c.CreateBooking)
	r.GET("/bookings/:id", c.GetBooking)
	r.DELETE("/bookings/:id", c.CancelBooking)
	return r
}

func postJSON(r *gin.Engine, target string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateBookingEndpoint(t *testing.T) {
	env := newTestEnv(t)
	slot := env.seedSlot(t, 2)
	r := newBookingRouter(env, "ada@example.edu", constants.ROLE_OCCUPANT)

	w := postJSON(r, "/bookings", bookingRequest(slot.ID, "device-1"))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success     bool   `json:"success"`
		BookingID   string `json:"bookingId"`
		SlotDetails struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"slotDetails"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.NotEmpty(t, body.BookingID)
	assert.Equal(t, slot.ID, body.SlotDetails.ID)
	assert.Equal(t, "RESERVED", body.SlotDetails.Status)

	// The same slot again is a conflict
	w = postJSON(r, "/bookings", bookingRequest(slot.ID, "device-2"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestCreateBookingEndpointRequiresSignIn(t *testing.T) {
	env := newTestEnv(t)
	slot := env.seedSlot(t, 2)
	r := newBookingRouter(env, "", "")

	w := postJSON(r, "/bookings", bookingRequest(slot.ID, "device-1"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetBookingHidesOtherOccupants(t *testing.T) {
	env := newTestEnv(t)
	slot := env.seedSlot(t, 2)
	id := book(t, env, slot, "bob@example.edu")

	w := httptest.NewRecorder()
	newBookingRouter(env, "eve@example.edu", constants.ROLE_OCCUPANT).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/"+id.String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	newBookingRouter(env, "tutor@example.edu", constants.ROLE_ADMIN).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/"+id.String(), nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	newBookingRouter(env, "tutor@example.edu", constants.ROLE_ADMIN).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
