package api

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/tunnelforge/tunnelforge/docs" // Register swagger docs (hand-maintained)

	"github.com/tunnelforge/tunnelforge/src/config"
	"github.com/tunnelforge/tunnelforge/src/events"
	"github.com/tunnelforge/tunnelforge/src/handler"
	"github.com/tunnelforge/tunnelforge/src/session"
	"github.com/tunnelforge/tunnelforge/src/tunnel"
	"github.com/tunnelforge/tunnelforge/src/ws"
)

// SetupRouter configures every route TunnelForge exposes: session
// CRUD and bulk operations, the WebSocket and SSE transports, health,
// and tunnel control, wired onto the session manager and event bus.
// The middleware stack (recovery, CORS, no-cache, optional request
// logging, swagger) and the HEAD-endpoint-existence convention carry
// over unchanged; only the route table is session-server specific.
func SetupRouter(cfg config.Config, manager *session.Manager, bus *events.Bus, tunnelMgr *tunnel.Manager, disableRequestLogging bool) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(processingTimeMiddleware())
	r.Use(corsMiddleware(cfg.AllowedOrigins))
	r.Use(noCacheMiddleware())
	if !disableRequestLogging {
		r.Use(logrusMiddleware())
	}
	r.Use(authMiddleware(cfg))

	r.GET("/swagger", func(c *gin.Context) {
		c.Redirect(301, "/swagger/index.html")
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	sessionHandler := handler.NewSessionHandler(manager)
	streamHandler := handler.NewStreamHandler(manager, bus)
	healthHandler := handler.NewHealthHandler(manager)
	tunnelHandler := handler.NewTunnelHandler(tunnelMgr)

	head := headHandler()

	r.GET("/health", healthHandler.Health)
	r.HEAD("/health", head)

	r.GET("/sessions", sessionHandler.List)
	r.HEAD("/sessions", head)
	r.POST("/sessions", sessionHandler.Create)
	r.POST("/sessions/bulk", sessionHandler.BulkCreate)
	r.POST("/sessions/bulk-delete", sessionHandler.BulkDelete)
	r.POST("/sessions/bulk-resize", sessionHandler.BulkResize)
	r.GET("/sessions/:id", sessionHandler.Get)
	r.HEAD("/sessions/:id", head)
	r.PATCH("/sessions/:id", sessionHandler.Rename)
	r.DELETE("/sessions/:id", sessionHandler.Delete)
	r.POST("/sessions/:id/resize", sessionHandler.Resize)
	r.POST("/sessions/:id/reset-size", sessionHandler.ResetSize)
	r.POST("/sessions/:id/input", sessionHandler.Input)
	r.GET("/sessions/:id/buffer", sessionHandler.Buffer)
	r.GET("/sessions/:id/stream", streamHandler.SessionOutput)
	r.HEAD("/sessions/:id/stream", head)

	r.POST("/cleanup-exited", sessionHandler.Cleanup)

	r.GET("/events", streamHandler.Events)
	r.HEAD("/events", head)

	r.GET("/ws/:id", func(c *gin.Context) {
		id := c.Param("id")
		sess, err := manager.Get(id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		checkOrigin := ws.CheckOrigin(cfg.AllowedOrigins)
		if err := ws.Serve(c.Writer, c.Request, id, sess.WSAdapter(), checkOrigin); err != nil {
			logrus.WithFields(logrus.Fields{"session": id, "error": err}).Warn("ws: upgrade failed")
		}
	})

	r.GET("/tunnel", tunnelHandler.Status)
	r.POST("/tunnel/start", tunnelHandler.Start)
	r.POST("/tunnel/stop", tunnelHandler.Stop)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "tunnelforge", "sessions": len(manager.List())})
	})

	return r
}

// corsMiddleware adds CORS headers scoped to the configured origin
// allow-list; an empty list falls back to a permissive wildcard for
// local development.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allow := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allow[o] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if len(allow) == 0 {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if _, ok := allow[origin]; ok {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// authMiddleware enforces cfg.AuthMode. AuthModeNone admits every
// request (local development). Under AuthModeOS, when a local bypass
// token is configured, only requests whose X-TunnelForge-Local-Bypass
// header carries it are admitted and the rest get 401; with no token
// configured every request is admitted. No OS-level check is made.
func authMiddleware(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.AuthMode == config.AuthModeNone {
			c.Next()
			return
		}
		if cfg.LocalBypassToken != "" && c.Request.Header.Get("X-TunnelForge-Local-Bypass") == cfg.LocalBypassToken {
			c.Next()
			return
		}
		if cfg.LocalBypassToken == "" {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
}

// headHandler returns a simple 200 OK for HEAD requests to check endpoint existence.
func headHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Status(http.StatusOK)
	}
}

// noCacheMiddleware adds no-cache headers to all responses to prevent caching issues.
func noCacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Writer.Header().Set("Pragma", "no-cache")
		c.Writer.Header().Set("Expires", "0")
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")

		c.Next()
	}
}

// sensitiveQueryParams contains query parameter names that should be redacted from logs.
var sensitiveQueryParams = []string{
	"api_key", "apikey", "api-key",
	"token", "access_token", "refresh_token", "auth_token", "bearer",
	"password", "passwd", "pwd",
	"secret", "client_secret", "api_secret",
	"key", "private_key", "encryption_key",
	"authorization", "auth",
	"credential", "credentials",
	"session", "session_id", "sessionid",
	"jwt",
}

// redactSecrets redacts sensitive information from a URL path with query string.
func redactSecrets(pathWithQuery string) string {
	parts := strings.SplitN(pathWithQuery, "?", 2)
	if len(parts) != 2 {
		return pathWithQuery
	}

	basePath := parts[0]
	queryString := parts[1]

	values, err := url.ParseQuery(queryString)
	if err != nil {
		return redactQueryPatterns(pathWithQuery)
	}

	hasSecrets := false
	for _, param := range sensitiveQueryParams {
		if values.Get(param) != "" {
			hasSecrets = true
			break
		}
		for key := range values {
			if strings.EqualFold(key, param) {
				hasSecrets = true
				break
			}
		}
	}

	if !hasSecrets {
		return pathWithQuery
	}

	for key := range values {
		for _, param := range sensitiveQueryParams {
			if strings.EqualFold(key, param) {
				values.Set(key, "[REDACTED]")
				break
			}
		}
	}

	return basePath + "?" + values.Encode()
}

// redactQueryPatterns redacts secrets using regex patterns when URL parsing fails.
func redactQueryPatterns(pathWithQuery string) string {
	result := pathWithQuery
	for _, param := range sensitiveQueryParams {
		pattern := regexp.MustCompile(`(?i)(` + regexp.QuoteMeta(param) + `=)[^&\s]*`)
		result = pattern.ReplaceAllString(result, "${1}[REDACTED]")
	}
	return result
}

func logrusMiddleware() gin.HandlerFunc {
	var skip map[string]struct{}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}

		sanitizedPath := redactSecrets(path)

		start := time.Now()
		c.Next()
		stop := time.Since(start)
		latency := int(math.Ceil(float64(stop.Nanoseconds()) / 1000000.0))
		statusCode := c.Writer.Status()
		dataLength := c.Writer.Size()
		if dataLength < 0 {
			dataLength = 0
		}

		if _, ok := skip[path]; ok {
			return
		}

		if len(c.Errors) > 0 {
			logrus.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
		} else {
			msg := fmt.Sprintf("%s %s %d %d %dms", c.Request.Method, sanitizedPath, statusCode, dataLength, latency)
			if statusCode >= http.StatusInternalServerError {
				logrus.Error(msg)
			} else if statusCode >= http.StatusBadRequest {
				logrus.Error(msg)
			} else {
				logrus.Info(msg)
			}
		}
	}
}
