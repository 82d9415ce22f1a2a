package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/topup/internal/payment/domain"
)

// HandleStripeWebhook receives provider callbacks on POST /webhook/stripe.
// Events the reconciler chooses to skip still return 200 so the provider
// stops redelivering them; only signature and payload failures are rejected.
func (s *Server) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	err = s.paymentSvc.IngestWebhook(c.Request.Context(), payload, c.Request.Header)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, paymentdomain.ErrEventAlreadyProcessed):
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, paymentdomain.ErrEventIgnored):
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	case errors.Is(err, paymentdomain.ErrProjectMismatch):
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": "project_mismatch"})
	case errors.Is(err, paymentdomain.ErrMissingAccount):
		c.JSON(http.StatusOK, gin.H{"status": "skipped", "reason": "invalid_account"})
	case errors.Is(err, paymentdomain.ErrUnknownPackage):
		c.JSON(http.StatusOK, gin.H{"status": "skipped", "reason": "unknown_package"})
	default:
		AbortWithError(c, err)
	}
}
