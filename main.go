package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tunnelforge/tunnelforge/docs" // swagger docs (hand-maintained)
	"github.com/tunnelforge/tunnelforge/src/api"
	"github.com/tunnelforge/tunnelforge/src/config"
	"github.com/tunnelforge/tunnelforge/src/events"
	"github.com/tunnelforge/tunnelforge/src/mcp"
	"github.com/tunnelforge/tunnelforge/src/session"
	"github.com/tunnelforge/tunnelforge/src/tunnel"

	"github.com/joho/godotenv"
)

// @title           TunnelForge API
// @version         1.0.0
// @description     Terminal session server: spawn, attach, stream and control PTY sessions over HTTP, WebSocket, SSE and a Unix-socket IPC protocol.

// @host      localhost:4020
// @BasePath  /
func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, using process environment")
	}

	cfg := config.Load()
	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", cfg.Port)

	bus := events.New()

	manager, err := session.NewManager(cfg.ControlRoot, bus, cfg.IPCSocketMode)
	if err != nil {
		logrus.Fatalf("failed to create session manager: %v", err)
	}
	if err := manager.RestoreOnStartup(); err != nil {
		logrus.Warnf("session restore failed: %v", err)
	}

	tunnelMgr := tunnel.NewManager(nil)
	if cfg.TunnelEnabled {
		if err := tunnelMgr.Start(cfg.Port); err != nil {
			logrus.Warnf("tunnel start failed: %v", err)
		}
	}

	router := api.SetupRouter(cfg, manager, bus, tunnelMgr, false)

	mcpServer, err := mcp.NewServer(router, manager)
	if err != nil {
		logrus.Fatalf("failed to create MCP server: %v", err)
	}
	if err := mcpServer.Serve(); err != nil {
		logrus.Fatalf("failed to start MCP server: %v", err)
	}

	bus.Publish(events.Event{Kind: events.KindServerUp, Timestamp: time.Now()})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		logrus.Infof("tunnelforge listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logrus.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	manager.Shutdown()
	_ = srv.Shutdown(ctx)
}
