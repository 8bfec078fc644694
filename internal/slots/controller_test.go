package slots

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listBody struct {
	Success bool `json:"success"`
	Data    struct {
		Slots []SlotResponse `json:"slots"`
		Count int            `json:"count"`
	} `json:"data"`
}

func newTestRouter(t *testing.T, env *testEnv, current time.Time) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gen := NewGenerator(env.ledger, testGeneratorConfig(t, 1), nil)
	gen.now = fixedClock(current)
	c := NewController(env.ledger, gen)
	c.now = fixedClock(current)

	r := gin.New()
	r.GET("/slots", c.GetAvailableSlots)
	r.GET("/admin/slots", c.ListSlots)
	r.POST("/admin/slots", c.CreateSlot)
	r.DELETE("/admin/slots", c.DeleteSlotsInRange)
	r.POST("/admin/slots/generate", c.GenerateSlots)
	r.POST("/admin/slots/purge", c.PurgeSlots)
	r.DELETE("/admin/slots/:id", c.DeleteSlot)
	r.PUT("/admin/slots/:id/location", c.UpdateSlotLocation)
	return r
}

func serve(r *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func serveJSON(r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetAvailableSlotsHidesOccupants(t *testing.T) {
	env := newTestEnv(t, false)
	current := at(2025, time.January, 6, 9, 0)
	open := env.seed(t, at(2025, time.January, 7, 11, 0))
	taken := env.seed(t, at(2025, time.January, 7, 12, 0))
	require.NoError(t, env.ledger.Reserve(context.Background(), taken.ID, "booking-1"))

	w := serve(newTestRouter(t, env, current), http.MethodGet, "/slots")
	require.Equal(t, http.StatusOK, w.Code)

	var body listBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data.Slots, 1)
	assert.Equal(t, open.ID, body.Data.Slots[0].ID)
	assert.Equal(t, "Tuesday", body.Data.Slots[0].DayName)
	assert.Equal(t, "11:00 AM", body.Data.Slots[0].TimeLabel)
	assert.Empty(t, body.Data.Slots[0].Occupant)
}

func TestGetAvailableSlotsRejectsBadLimit(t *testing.T) {
	env := newTestEnv(t, false)
	w := serve(newTestRouter(t, env, at(2025, time.January, 6, 9, 0)), http.MethodGet, "/slots?limit=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSlotsShowsOccupants(t *testing.T) {
	env := newTestEnv(t, false)
	taken := env.seed(t, at(2025, time.January, 7, 12, 0))
	env.seed(t, at(2025, time.January, 20, 12, 0))
	require.NoError(t, env.ledger.Reserve(context.Background(), taken.ID, "booking-1"))

	r := newTestRouter(t, env, at(2025, time.January, 6, 9, 0))
	w := serve(r, http.MethodGet, "/admin/slots?from=2025-01-07&to=2025-01-07")
	require.Equal(t, http.StatusOK, w.Code)

	var body listBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data.Slots, 1)
	assert.Equal(t, "booking-1", body.Data.Slots[0].Occupant)

	w = serve(r, http.MethodGet, "/admin/slots?from=07-01-2025")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateThenPurgeEndpoints(t *testing.T) {
	env := newTestEnv(t, false)
	r := newTestRouter(t, env, at(2025, time.January, 6, 9, 0))

	w := serve(r, http.MethodPost, "/admin/slots/generate")
	require.Equal(t, http.StatusOK, w.Code)
	var gen struct {
		Data GenerateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &gen))
	assert.Equal(t, 10, gen.Data.Added)

	w = serve(r, http.MethodPost, "/admin/slots/purge")
	require.Equal(t, http.StatusOK, w.Code)
	var purge struct {
		Data PurgeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &purge))
	assert.Equal(t, 0, purge.Data.Deleted)
}

func TestSlotsEndpointReportsStoreOutage(t *testing.T) {
	env := newTestEnv(t, false)
	r := newTestRouter(t, env, at(2025, time.January, 6, 9, 0))
	env.mr.Close()

	w := serve(r, http.MethodGet, "/slots")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCreateSlotEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	r := newTestRouter(t, env, at(2025, time.January, 6, 9, 0))

	w := serveJSON(r, http.MethodPost, "/admin/slots", `{"startTime":"2025-01-09T16:00"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data SlotResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "202501091600_tutor1", created.Data.ID)
	assert.Equal(t, StatusAvailable, created.Data.Status)
	assert.Equal(t, "room", created.Data.LocationType)
	assert.Equal(t, "Library 204", created.Data.LocationValue)

	w = serveJSON(r, http.MethodPost, "/admin/slots", `{"startTime":"2025-01-10T15:00:00Z","locationType":"zoom","locationValue":"https://zoom.example/j/1"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "202501101000_tutor1", created.Data.ID)
	assert.Equal(t, "zoom", created.Data.LocationType)

	w = serveJSON(r, http.MethodPost, "/admin/slots", `{"startTime":"2025-01-09T16:00"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")

	assert.Equal(t, http.StatusBadRequest, serveJSON(r, http.MethodPost, "/admin/slots", `{"startTime":"2025-01-05T10:00"}`).Code)
	assert.Equal(t, http.StatusBadRequest, serveJSON(r, http.MethodPost, "/admin/slots", `{"startTime":"next tuesday"}`).Code)
	assert.Equal(t, http.StatusBadRequest, serveJSON(r, http.MethodPost, "/admin/slots", `{"startTime":"2025-01-09T17:00","locationType":"moon"}`).Code)
}

func TestDeleteSlotRefusesReserved(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	open := env.seed(t, at(2025, time.January, 7, 11, 0))
	taken := env.seed(t, at(2025, time.January, 7, 12, 0))
	require.NoError(t, env.ledger.Reserve(ctx, taken.ID, "booking-1"))
	r := newTestRouter(t, env, at(2025, time.January, 6, 9, 0))

	w := serve(r, http.MethodDelete, "/admin/slots/"+taken.ID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "booked")
	got, err := env.ledger.Get(ctx, taken.ID)
	require.NoError(t, err)
	assert.Equal(t, "booking-1", got.Occupant)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodDelete, "/admin/slots/"+open.ID).Code)
	_, err = env.ledger.Get(ctx, open.ID)
	assert.ErrorIs(t, err, ErrSlotNotFound)

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodDelete, "/admin/slots/"+open.ID).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodDelete, "/admin/slots/bad-id!").Code)
}

func TestDeleteSlotsInRangeKeepsReserved(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	taken := env.seed(t, at(2025, time.January, 7, 11, 0))
	env.seed(t, at(2025, time.January, 7, 12, 0))
	env.seed(t, at(2025, time.January, 8, 14, 0))
	later := env.seed(t, at(2025, time.January, 20, 12, 0))
	require.NoError(t, env.ledger.Reserve(ctx, taken.ID, "booking-1"))
	r := newTestRouter(t, env, at(2025, time.January, 6, 9, 0))

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodDelete, "/admin/slots?from=2025-01-07").Code)

	w := serve(r, http.MethodDelete, "/admin/slots?from=2025-01-07&to=2025-01-08")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data RemoveResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Data.Deleted)
	assert.Equal(t, []string{taken.ID}, body.Data.Skipped)

	_, err := env.ledger.Get(ctx, taken.ID)
	assert.NoError(t, err)
	_, err = env.ledger.Get(ctx, later.ID)
	assert.NoError(t, err)
}

func TestUpdateSlotLocationEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	slot := env.seed(t, at(2025, time.January, 7, 11, 0))
	r := newTestRouter(t, env, at(2025, time.January, 6, 9, 0))

	w := serveJSON(r, http.MethodPut, "/admin/slots/"+slot.ID+"/location", `{"locationType":"zoom","locationValue":"https://zoom.example/j/42"}`)
	require.Equal(t, http.StatusOK, w.Code)
	got, err := env.ledger.Get(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.Equal(t, "zoom", got.LocationType)
	assert.Equal(t, "https://zoom.example/j/42", got.LocationValue)
	assert.Equal(t, StatusAvailable, got.Status)

	w = serveJSON(r, http.MethodPut, "/admin/slots/"+slot.ID+"/location", `{"locationType":"moon"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "zoom, room, user_choice")

	w = serveJSON(r, http.MethodPut, "/admin/slots/209901011100_tutor1/location", `{"locationType":"room","locationValue":"Library 101"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
