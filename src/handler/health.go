package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tunnelforge/tunnelforge/src/session"
)

// Version and GitCommit are set via ldflags at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var startTime = time.Now()

// HealthHandler reports liveness, the live session count and basic
// build/runtime information.
type HealthHandler struct {
	*BaseHandler
	manager *session.Manager
}

// NewHealthHandler builds a HealthHandler bound to manager.
func NewHealthHandler(manager *session.Manager) *HealthHandler {
	return &HealthHandler{BaseHandler: NewBaseHandler(), manager: manager}
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	GitCommit     string  `json:"gitCommit"`
	GoVersion     string  `json:"goVersion"`
	OS            string  `json:"os"`
	Arch          string  `json:"arch"`
	Sessions      int     `json:"sessions"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	StartedAt     string  `json:"startedAt"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	uptime := time.Since(startTime)
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       Version,
		GitCommit:     GitCommit,
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		Sessions:      len(h.manager.List()),
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		StartedAt:     startTime.Format(time.RFC3339),
	})
}
