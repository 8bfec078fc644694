package slots

import (
	"net/http"
	"strconv"
	"time"

	"tutorbook/internal/shared/errs"
	"tutorbook/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/now"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	// adminListDays is how far ahead the admin overview looks by default
	adminListDays = 42
)

// localStartLayout is the wall-clock form accepted for a new slot's start
const localStartLayout = "2006-01-02T15:04"

var (
	errInvalidRange    = errs.Validation("Invalid date range. Use YYYY-MM-DD.")
	errRangeRequired   = errs.Validation("Both from and to are required.")
	errInvalidBody     = errs.Validation("Invalid request body")
	errInvalidStart    = errs.Validation("Invalid startTime. Use RFC 3339 or YYYY-MM-DDTHH:MM.")
	errInvalidLocation = errs.Validation("Invalid locationType. Must be one of: zoom, room, user_choice.")
)

type Controller struct {
	ledger    *Ledger
	generator *Generator
	validator *validator.Validate
	now       func() time.Time
}

func NewController(ledger *Ledger, generator *Generator) *Controller {
	return &Controller{
		ledger:    ledger,
		generator: generator,
		validator: validator.New(),
		now:       time.Now,
	}
}

// GetAvailableSlots godoc
// @Summary List bookable slots
// @Tags slots
// @Produce json
// @Param limit query int false "Maximum number of slots (default 50, max 200)"
// @Success 200 {object} response.StandardApiResponse
// @Failure 429 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /slots [get]
func (c *Controller) GetAvailableSlots(ctx *gin.Context) {
	limit := defaultListLimit
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.RespondError(ctx, errs.Validation("limit must be a positive number."))
			return
		}
		limit = n
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	available, err := c.ledger.ListAvailable(ctx.Request.Context(), c.now(), limit)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "Available slots retrieved successfully", gin.H{
		"slots": ToResponses(available, c.generator.Location(), false),
		"count": len(available),
	})
}

// ListSlots godoc
// @Summary List every slot in a date range with occupants
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param from query string false "First day, YYYY-MM-DD (default today)"
// @Param to query string false "Last day, YYYY-MM-DD (default six weeks ahead)"
// @Success 200 {object} response.StandardApiResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/slots [get]
func (c *Controller) ListSlots(ctx *gin.Context) {
	from, to, err := c.dateRange(ctx)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	list, err := c.ledger.ListBetween(ctx.Request.Context(), from, to)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "Slots retrieved successfully", gin.H{
		"slots": ToResponses(list, c.generator.Location(), true),
		"count": len(list),
	})
}

// dateRange reads the from/to days, defaulting to today through six weeks
// ahead. to covers its whole day.
func (c *Controller) dateRange(ctx *gin.Context) (time.Time, time.Time, error) {
	loc := c.generator.Location()
	current := now.With(c.now().In(loc))

	from := current.BeginningOfDay()
	to := from.AddDate(0, 0, adminListDays)
	var err error
	if raw := ctx.Query("from"); raw != "" {
		if from, err = time.ParseInLocation(time.DateOnly, raw, loc); err != nil {
			return time.Time{}, time.Time{}, errInvalidRange
		}
	}
	if raw := ctx.Query("to"); raw != "" {
		if to, err = time.ParseInLocation(time.DateOnly, raw, loc); err != nil {
			return time.Time{}, time.Time{}, errInvalidRange
		}
	}
	to = now.With(to).EndOfDay()
	if to.Before(from) {
		return time.Time{}, time.Time{}, errInvalidRange
	}
	return from, to, nil
}

// CreateSlot godoc
// @Summary Add one slot outside the weekly template
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateSlotRequest true "Start and location"
// @Success 201 {object} response.StandardApiResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/slots [post]
func (c *Controller) CreateSlot(ctx *gin.Context) {
	var req CreateSlotRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondError(ctx, errInvalidBody)
		return
	}
	if req.StartTime == "" {
		response.RespondError(ctx, errInvalidStart)
		return
	}
	if err := c.validator.Struct(&req); err != nil {
		response.RespondError(ctx, errInvalidLocation)
		return
	}

	start, err := c.parseStart(req.StartTime)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	slot, err := c.generator.AddSlot(ctx.Request.Context(), start, req.LocationType, req.LocationValue)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, http.StatusCreated, "Slot added", ToResponse(slot, c.generator.Location(), true))
}

func (c *Controller) parseStart(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(localStartLayout, raw, c.generator.Location()); err == nil {
		return t, nil
	}
	return time.Time{}, errInvalidStart
}

// DeleteSlot godoc
// @Summary Delete a slot that is not booked
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Slot ID"
// @Success 200 {object} response.StandardApiResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/slots/{id} [delete]
func (c *Controller) DeleteSlot(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := ValidateID(id); err != nil {
		response.RespondError(ctx, err)
		return
	}

	if err := c.ledger.Remove(ctx.Request.Context(), id); err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "Slot deleted", nil)
}

// DeleteSlotsInRange godoc
// @Summary Delete every unbooked slot in a date range
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param from query string true "First day, YYYY-MM-DD"
// @Param to query string true "Last day, YYYY-MM-DD"
// @Success 200 {object} RemoveResponse
// @Failure 400 {object} response.ErrorResponse
// @Router /admin/slots [delete]
func (c *Controller) DeleteSlotsInRange(ctx *gin.Context) {
	if ctx.Query("from") == "" || ctx.Query("to") == "" {
		response.RespondError(ctx, errRangeRequired)
		return
	}
	from, to, err := c.dateRange(ctx)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	report, err := c.generator.RemoveBetween(ctx.Request.Context(), from, to)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "Slots deleted", report)
}

// UpdateSlotLocation godoc
// @Summary Change where a slot's session takes place
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Slot ID"
// @Param body body UpdateLocationRequest true "Location"
// @Success 200 {object} response.StandardApiResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/slots/{id}/location [put]
func (c *Controller) UpdateSlotLocation(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := ValidateID(id); err != nil {
		response.RespondError(ctx, err)
		return
	}

	var req UpdateLocationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondError(ctx, errInvalidBody)
		return
	}
	if err := c.validator.Struct(&req); err != nil {
		response.RespondError(ctx, errInvalidLocation)
		return
	}

	if err := c.ledger.UpdateLocation(ctx.Request.Context(), id, req.LocationType, req.LocationValue); err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "Slot location updated successfully", nil)
}

// GenerateSlots godoc
// @Summary Create the template slots for the configured horizon
// @Description Idempotent: existing slots are left untouched.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} GenerateResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /admin/slots/generate [post]
func (c *Controller) GenerateSlots(ctx *gin.Context) {
	report, err := c.generator.GenerateAndStore(ctx.Request.Context())
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "Slots generated successfully", report)
}

// PurgeSlots godoc
// @Summary Delete every slot whose start has passed
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} PurgeResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /admin/slots/purge [post]
func (c *Controller) PurgeSlots(ctx *gin.Context) {
	deleted, err := c.generator.PurgeExpired(ctx.Request.Context())
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "Expired slots purged", PurgeResponse{Deleted: deleted})
}

// GetInventory godoc
// @Summary Count bookable slots against the low-inventory floor
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} InventoryStatus
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/slots/inventory [get]
func (c *Controller) GetInventory(ctx *gin.Context) {
	status, err := c.generator.CheckInventory(ctx.Request.Context())
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "Inventory checked", status)
}
