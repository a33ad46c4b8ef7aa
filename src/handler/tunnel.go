package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tunnelforge/tunnelforge/src/tunnel"
)

// TunnelHandler exposes the tunnel manager's start/stop/status switch.
type TunnelHandler struct {
	*BaseHandler
	manager *tunnel.Manager
}

// NewTunnelHandler builds a TunnelHandler bound to manager.
func NewTunnelHandler(manager *tunnel.Manager) *TunnelHandler {
	return &TunnelHandler{BaseHandler: NewBaseHandler(), manager: manager}
}

// Status handles GET /tunnel.
func (h *TunnelHandler) Status(c *gin.Context) {
	h.SendJSON(c, http.StatusOK, h.manager.Report())
}

type tunnelStartRequest struct {
	Port int `json:"port" binding:"required"`
}

// Start handles POST /tunnel/start.
func (h *TunnelHandler) Start(c *gin.Context) {
	var req tunnelStartRequest
	if err := h.BindJSON(c, &req); err != nil {
		h.SendError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.manager.Start(req.Port); err != nil {
		h.SendError(c, http.StatusInternalServerError, err)
		return
	}
	h.SendJSON(c, http.StatusOK, h.manager.Report())
}

// Stop handles POST /tunnel/stop.
func (h *TunnelHandler) Stop(c *gin.Context) {
	if err := h.manager.Stop(); err != nil {
		h.SendError(c, http.StatusInternalServerError, err)
		return
	}
	h.SendJSON(c, http.StatusOK, h.manager.Report())
}
