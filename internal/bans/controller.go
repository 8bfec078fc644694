package bans

import (
	"net/http"

	"tutorbook/internal/shared/constants"
	"tutorbook/internal/shared/errs"
	"tutorbook/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type Controller struct {
	service   Service
	validator *validator.Validate
}

func NewController(service Service) *Controller {
	return &Controller{
		service:   service,
		validator: validator.New(),
	}
}

// BanUser godoc
// @Summary Suspend an email address from booking
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body BanRequest true "Email and reason"
// @Success 200 {object} response.StandardApiResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/bans [post]
func (c *Controller) BanUser(ctx *gin.Context) {
	var req BanRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondError(ctx, errs.Validation("Invalid request body"))
		return
	}
	if err := c.validator.Struct(&req); err != nil {
		response.RespondError(ctx, errs.Validation("A valid email is required."))
		return
	}

	ban, err := c.service.Ban(ctx.Request.Context(), req.Email, req.Reason, ctx.GetString(constants.CTX_USER_EMAIL))
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "User "+ban.Email+" has been banned", ban)
}

// UnbanUser godoc
// @Summary Lift a ban
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param email path string true "Banned email"
// @Success 200 {object} response.StandardApiResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/bans/{email} [delete]
func (c *Controller) UnbanUser(ctx *gin.Context) {
	email := ctx.Param("email")
	if err := c.service.Unban(ctx.Request.Context(), email); err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "User "+normalizeEmail(email)+" has been unbanned", nil)
}

// ListBans godoc
// @Summary List banned users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.StandardApiResponse
// @Router /admin/bans [get]
func (c *Controller) ListBans(ctx *gin.Context) {
	list, err := c.service.List(ctx.Request.Context())
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "Banned users retrieved successfully", gin.H{
		"bans":  list,
		"count": len(list),
	})
}
