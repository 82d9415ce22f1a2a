package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/smallbiznis/topup/internal/checkout/domain"
)

type createSessionRequest struct {
	TelegramUserID flexibleID `json:"telegram_user_id"`
	PaqueteID      string     `json:"paquete_id"`
	PriorityBoost  *int       `json:"priority_boost"`
}

// flexibleID accepts a JSON string or number. Telegram clients send the
// user id either way depending on the bot framework in front of us.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}

	*f = flexibleID(n.String())
	return nil
}

// CreateCheckoutSession serves POST /crear-sesion.
func (s *Server) CreateCheckoutSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.checkoutSvc.CreateSession(c.Request.Context(), checkoutdomain.CreateSessionRequest{
		TelegramUserID: string(req.TelegramUserID),
		PackageID:      req.PaqueteID,
		PriorityBoost:  req.PriorityBoost,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
