package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/scorewire/match-data-service/internal/proxy"
	"github.com/scorewire/match-data-service/internal/utils"
)

// AdminHandler exposes operator actions.
type AdminHandler struct {
	pool   *proxy.Pool
	logger *logrus.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(pool *proxy.Pool, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{pool: pool, logger: logger}
}

// ResetProxies clears all proxy failure marks.
func (h *AdminHandler) ResetProxies(c *gin.Context) {
	h.logger.WithField("component", "admin").Info("Manual proxy pool reset requested")
	h.pool.Reset()
	utils.SendSuccess(c, h.pool.Status())
}
