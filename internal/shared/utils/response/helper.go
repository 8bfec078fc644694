package response

import (
	"net/http"
	"strconv"

	"tutorbook/internal/shared/errs"

	"github.com/gin-gonic/gin"
)

// LoginRedirect is sent with 401 responses so browsers can restart sign-in
const LoginRedirect = "/login"

// RespondJSON writes the standard envelope
func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, StandardApiResponse{
		Success: code < http.StatusBadRequest,
		Message: message,
		Data:    data,
	})
}

// RespondSuccess merges success:true into a flat payload
func RespondSuccess(c *gin.Context, code int, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(code, body)
}

// StatusFor maps an error kind to its HTTP status
func StatusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation, errs.KindConflict:
		return http.StatusBadRequest
	case errs.KindUnauthenticated:
		return http.StatusUnauthorized
	case errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindRateLimited:
		return http.StatusTooManyRequests
	case errs.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err using only its client-safe message
func RespondError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	body := ErrorResponse{
		Success: false,
		Message: errs.MessageOf(err),
	}

	switch kind {
	case errs.KindRateLimited:
		retryAfter := errs.RetryAfterOf(err)
		body.Error = "rate_limit_exceeded"
		body.RetryAfterSeconds = retryAfter
		c.Header("Retry-After", strconv.Itoa(retryAfter))
	case errs.KindUnauthenticated:
		body.Redirect = LoginRedirect
	}

	c.JSON(StatusFor(kind), body)
}

// AbortWithError writes err and stops the handler chain
func AbortWithError(c *gin.Context, err error) {
	RespondError(c, err)
	c.Abort()
}
