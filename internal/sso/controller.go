package sso

import (
	"net/http"

	"tutorbook/internal/auth"
	"tutorbook/internal/shared/constants"
	"tutorbook/internal/shared/utils/response"
	"tutorbook/pkg/logger"
	"tutorbook/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

// SessionIssuer signs the session token handed back after redemption
type SessionIssuer interface {
	Issue(subject auth.Subject) (*auth.TokenPair, error)
}

// HandoffRequest is the form (or JSON) body posted by the identity service
type HandoffRequest struct {
	Token string `form:"token" json:"token"`
}

// HandoffResponse is returned for a redeemed token
type HandoffResponse struct {
	User        auth.UserResponse `json:"user"`
	AccessToken string            `json:"access_token"`
	ExpiresIn   int64             `json:"expires_in"`
	Redirect    string            `json:"redirect"`
}

type Controller struct {
	guard        *NonceGuard
	sessions     SessionIssuer
	redirectPath string
	log          *logger.Logger
}

func NewController(guard *NonceGuard, sessions SessionIssuer, redirectPath string) *Controller {
	return &Controller{
		guard:        guard,
		sessions:     sessions,
		redirectPath: redirectPath,
		log:          logger.GetDefault().WithComponent("sso"),
	}
}

// Handoff godoc
// @Summary Redeem a single-use sign-in handoff token
// @Tags auth
// @Accept x-www-form-urlencoded
// @Produce json
// @Param token formData string true "Signed handoff token"
// @Success 200 {object} response.StandardApiResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Router /auth/sso/handoff [post]
func (c *Controller) Handoff(ctx *gin.Context) {
	reqCtx := ctx.Request.Context()
	clientIP := ratelimit.ClientIdentity(ctx)

	if err := c.guard.CheckOrigin(ctx.GetHeader("Origin")); err != nil {
		c.log.LogAuthFailure(reqCtx, "origin_mismatch", clientIP)
		response.RespondError(ctx, err)
		return
	}

	var req HandoffRequest
	if err := ctx.ShouldBind(&req); err != nil || req.Token == "" {
		c.log.LogAuthFailure(reqCtx, "missing_token", clientIP)
		response.RespondError(ctx, ErrMalformedToken)
		return
	}

	identity, err := c.guard.Redeem(reqCtx, req.Token)
	if err != nil {
		c.log.LogAuthFailure(reqCtx, err.Error(), clientIP)
		response.RespondError(ctx, err)
		return
	}

	session, err := c.sessions.Issue(auth.Subject{
		Email:    identity.Email,
		Name:     identity.Name,
		Role:     constants.ROLE_OCCUPANT,
		Provider: identity.Provider,
	})
	if err != nil {
		c.log.ErrorWithContext(reqCtx, "failed to issue session", err, nil)
		response.RespondError(ctx, err)
		return
	}

	c.log.LogAuthSuccess(reqCtx, identity.Email, "sso:"+identity.Provider)
	response.RespondJSON(ctx, http.StatusOK, "Signed in", HandoffResponse{
		User: auth.UserResponse{
			Email:    identity.Email,
			Name:     identity.Name,
			Role:     constants.ROLE_OCCUPANT,
			Provider: identity.Provider,
		},
		AccessToken: session.AccessToken,
		ExpiresIn:   session.ExpiresIn,
		Redirect:    c.redirectPath,
	})
}
