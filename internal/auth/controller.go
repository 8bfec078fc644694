package auth

import (
	"net/http"

	"tutorbook/internal/shared/constants"
	"tutorbook/internal/shared/errs"
	"tutorbook/internal/shared/utils/response"
	"tutorbook/pkg/logger"
	"tutorbook/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type Controller struct {
	service   Service
	validator *validator.Validate
	log       *logger.Logger
}

func NewController(service Service) *Controller {
	return &Controller{
		service:   service,
		validator: validator.New(),
		log:       logger.GetDefault().WithComponent("auth"),
	}
}

// AdminLogin godoc
// @Summary Admin password sign-in
// @Tags auth
// @Accept json
// @Produce json
// @Param body body AdminLoginRequest true "Credentials"
// @Success 200 {object} response.StandardApiResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Router /auth/admin/login [post]
func (c *Controller) AdminLogin(ctx *gin.Context) {
	var req AdminLoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondError(ctx, errs.Validation("Invalid request body"))
		return
	}

	if err := c.validator.Struct(&req); err != nil {
		response.RespondError(ctx, ErrInvalidCredentials)
		return
	}

	resp, err := c.service.AdminLogin(ctx.Request.Context(), &req)
	if err != nil {
		c.log.LogAuthFailure(ctx.Request.Context(), "admin_password", ratelimit.ClientIdentity(ctx))
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "Login successful", resp)
}

// GetMe godoc
// @Summary Current session
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.StandardApiResponse
// @Failure 401 {object} response.ErrorResponse
// @Router /auth/me [get]
func (c *Controller) GetMe(ctx *gin.Context) {
	email := ctx.GetString(constants.CTX_USER_EMAIL)
	if email == "" {
		response.RespondError(ctx, errs.New(errs.KindUnauthenticated, "Please sign in."))
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "User data retrieved successfully", UserResponse{
		Email: email,
		Name:  ctx.GetString(constants.CTX_USER_NAME),
		Role:  ctx.GetString(constants.CTX_USER_ROLE),
	})
}
