package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tunnelforge/tunnelforge/src/config"
	"github.com/tunnelforge/tunnelforge/src/events"
	"github.com/tunnelforge/tunnelforge/src/session"
	"github.com/tunnelforge/tunnelforge/src/tunnel"
)

// DummyResponseWriter implements http.ResponseWriter but discards all
// data, eliminating the overhead of httptest.NewRecorder() in benchmarks.
type DummyResponseWriter struct{}

func (d *DummyResponseWriter) Header() http.Header { return http.Header{} }

func (d *DummyResponseWriter) Write(data []byte) (int, error) { return len(data), nil }

func (d *DummyResponseWriter) WriteHeader(statusCode int) {}

// setupBenchmarkRouter wraps SetupRouter with benchmark mode configuration.
func setupBenchmarkRouter(b *testing.B) (*gin.Engine, *session.Manager) {
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard
	bus := events.New()
	manager, err := session.NewManager(b.TempDir(), bus, 0)
	if err != nil {
		b.Fatalf("NewManager: %v", err)
	}
	cfg := config.Load()
	r := SetupRouter(cfg, manager, bus, tunnel.NewManager(nil), true)
	return r, manager
}

// benchmarkRequest executes an HTTP request against the router for
// benchmarking. The request is rebuilt each iteration since a body can
// only be read once.
func benchmarkRequest(b *testing.B, router *gin.Engine, method, path string, body []byte) {
	w := new(DummyResponseWriter)
	for b.Loop() {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewBuffer(body)
		}
		req, _ := http.NewRequest(method, path, bodyReader)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		router.ServeHTTP(w, req)
	}
}

// BenchmarkSessionCreate benchmarks POST /sessions.
func BenchmarkSessionCreate(b *testing.B) {
	router, _ := setupBenchmarkRouter(b)
	body, _ := json.Marshal(map[string]interface{}{
		"command": []string{"/bin/sh", "-c", "sleep 5"},
		"cols":    80,
		"rows":    24,
	})
	benchmarkRequest(b, router, http.MethodPost, "/sessions", body)
}

// BenchmarkSessionList benchmarks GET /sessions against a manager
// pre-populated with a handful of sessions.
func BenchmarkSessionList(b *testing.B) {
	router, manager := setupBenchmarkRouter(b)
	for i := 0; i < 10; i++ {
		_, err := manager.Create(session.CreateOptions{Command: []string{"/bin/sh", "-c", "sleep 5"}, Cols: 80, Rows: 24})
		if err != nil {
			b.Fatalf("Create: %v", err)
		}
	}
	benchmarkRequest(b, router, http.MethodGet, "/sessions", nil)
}

// BenchmarkHealth benchmarks GET /health.
func BenchmarkHealth(b *testing.B) {
	router, _ := setupBenchmarkRouter(b)
	benchmarkRequest(b, router, http.MethodGet, "/health", nil)
}
