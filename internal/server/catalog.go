package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListPackages serves GET /paquetes so bot front-ends can render the
// current catalog without hardcoding it.
func (s *Server) ListPackages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"currency": s.cfg.Currency,
		"packages": s.catalog.Get().Packages,
	})
}
