package bookings

import (
	"net/http"

	"tutorbook/internal/shared/constants"
	"tutorbook/internal/shared/errs"
	"tutorbook/internal/shared/utils/response"
	"tutorbook/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var (
	errNotSignedIn      = errs.New(errs.KindUnauthenticated, "Please sign in to book a session.")
	errInvalidBookingID = errs.Validation("Invalid booking ID")
	errInvalidBody      = errs.Validation("Invalid request body")
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// CreateBooking godoc
// @Summary Book a time slot
// @Tags bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateBookingRequest true "Booking form"
// @Success 200 {object} CreateBookingResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Router /bookings [post]
func (c *Controller) CreateBooking(ctx *gin.Context) {
	email := ctx.GetString(constants.CTX_USER_EMAIL)
	if email == "" {
		response.RespondError(ctx, errNotSignedIn)
		return
	}

	var req CreateBookingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondError(ctx, errInvalidBody)
		return
	}

	result, err := c.service.Create(ctx.Request.Context(), Caller{
		Email:    email,
		ClientIP: ratelimit.ClientIdentity(ctx),
	}, req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondSuccess(ctx, http.StatusOK, gin.H{
		"bookingId":   result.BookingID,
		"slotDetails": result.SlotDetails,
	})
}

// GetMyBookings godoc
// @Summary List the caller's bookings
// @Tags bookings
// @Produce json
// @Security BearerAuth
// @Param status query string false "CONFIRMED, CANCELLED or COMPLETED"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.StandardApiResponse
// @Router /bookings/mine [get]
func (c *Controller) GetMyBookings(ctx *gin.Context) {
	var query BookingListQuery
	_ = ctx.ShouldBindQuery(&query)

	list, total, err := c.service.ListForOccupant(ctx.Request.Context(), ctx.GetString(constants.CTX_USER_EMAIL), query)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "Bookings retrieved successfully", c.page(list, total, query))
}

// GetBooking godoc
// @Summary Get one booking
// @Tags bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} response.StandardApiResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /bookings/{id} [get]
func (c *Controller) GetBooking(ctx *gin.Context) {
	bookingID, ok := parseID(ctx)
	if !ok {
		return
	}

	booking, err := c.service.Get(ctx.Request.Context(), bookingID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	// Non-admins only see their own bookings
	if ctx.GetString(constants.CTX_USER_ROLE) != constants.ROLE_ADMIN &&
		booking.OccupantEmail != ctx.GetString(constants.CTX_USER_EMAIL) {
		response.RespondError(ctx, ErrBookingNotFound)
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "Booking retrieved successfully", toBookingResponse(*booking, c.service.Location()))
}

// RescheduleBooking godoc
// @Summary Move a booking to another slot
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Param body body RescheduleRequest true "Target slot"
// @Success 200 {object} response.StandardApiResponse
// @Failure 400 {object} response.ErrorResponse
// @Router /bookings/{id} [put]
func (c *Controller) RescheduleBooking(ctx *gin.Context) {
	bookingID, ok := parseID(ctx)
	if !ok {
		return
	}

	var req RescheduleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondError(ctx, errInvalidBody)
		return
	}

	booking, err := c.service.Reschedule(ctx.Request.Context(), bookingID, req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "Booking rescheduled successfully", toBookingResponse(*booking, c.service.Location()))
}

// CompleteBooking godoc
// @Summary Mark a booking completed
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} response.StandardApiResponse
// @Router /bookings/{id}/complete [post]
func (c *Controller) CompleteBooking(ctx *gin.Context) {
	bookingID, ok := parseID(ctx)
	if !ok {
		return
	}

	if err := c.service.Complete(ctx.Request.Context(), bookingID); err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "Booking completed", nil)
}

// CancelBooking godoc
// @Summary Cancel a booking and free its slot
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} response.StandardApiResponse
// @Router /bookings/{id} [delete]
func (c *Controller) CancelBooking(ctx *gin.Context) {
	bookingID, ok := parseID(ctx)
	if !ok {
		return
	}

	if err := c.service.Cancel(ctx.Request.Context(), bookingID); err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "Booking cancelled successfully", nil)
}

// ListAllBookings godoc
// @Summary List every booking
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "CONFIRMED, CANCELLED or COMPLETED"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.StandardApiResponse
// @Router /admin/bookings [get]
func (c *Controller) ListAllBookings(ctx *gin.Context) {
	var query BookingListQuery
	_ = ctx.ShouldBindQuery(&query)

	list, total, err := c.service.ListAll(ctx.Request.Context(), query)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "Bookings retrieved successfully", c.page(list, total, query))
}

func (c *Controller) page(list []Booking, total int64, query BookingListQuery) BookingListResponse {
	query = query.normalized()
	out := make([]BookingResponse, len(list))
	for i, b := range list {
		out[i] = toBookingResponse(b, c.service.Location())
	}
	return BookingListResponse{
		Bookings:   out,
		TotalCount: total,
		Page:       query.Page,
		Limit:      query.Limit,
		TotalPages: CalculateTotalPages(total, query.Limit),
	}
}

func parseID(ctx *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondError(ctx, errInvalidBookingID)
		return uuid.Nil, false
	}
	return id, true
}
