package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/topup/internal/account/domain"
	checkoutdomain "github.com/smallbiznis/topup/internal/checkout/domain"
	paymentdomain "github.com/smallbiznis/topup/internal/payment/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, checkoutdomain.ErrInvalidAccount),
		errors.Is(err, checkoutdomain.ErrUnknownPackage),
		errors.Is(err, accountdomain.ErrInvalidAccount):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, paymentdomain.ErrInvalidSignature),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent):
		return http.StatusBadRequest, errorPayload{
			Type:    "webhook_rejected",
			Message: err.Error(),
		}
	case errors.Is(err, checkoutdomain.ErrUpstream),
		errors.Is(err, checkoutdomain.ErrInvalidConfig):
		return http.StatusInternalServerError, errorPayload{
			Type:    "upstream_error",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return payload.Type, "internal"
	}
	return payload.Type, payload.Message
}
