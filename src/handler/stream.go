package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tunnelforge/tunnelforge/src/events"
	"github.com/tunnelforge/tunnelforge/src/session"
	"github.com/tunnelforge/tunnelforge/src/sse"
)

// StreamHandler serves the server-wide lifecycle event stream and
// the per-session read-only output stream, both over SSE.
type StreamHandler struct {
	*BaseHandler
	manager *session.Manager
	bus     *events.Bus
}

// NewStreamHandler builds a StreamHandler bound to manager and bus.
func NewStreamHandler(manager *session.Manager, bus *events.Bus) *StreamHandler {
	return &StreamHandler{BaseHandler: NewBaseHandler(), manager: manager, bus: bus}
}

// Events handles GET /events: every lifecycle event on the bus,
// server-wide.
func (h *StreamHandler) Events(c *gin.Context) {
	sub := h.bus.Subscribe("*")
	defer sub.Cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	sse.Pump(c.Writer, c.Request.Context().Done(), func() ([]byte, string, bool) {
		ev, ok := <-sub.C
		if !ok {
			return nil, "", false
		}
		b, err := json.Marshal(ev)
		if err != nil {
			return nil, "", true
		}
		return b, string(ev.Kind), true
	})
}

// SessionOutput handles GET /sessions/:id/stream: a read-only replay
// plus live stream of one session's raw output.
func (h *StreamHandler) SessionOutput(c *gin.Context) {
	id, err := h.GetPathParam(c, "id")
	if err != nil {
		h.SendError(c, http.StatusBadRequest, err)
		return
	}
	sess, err := h.manager.Get(id)
	if err != nil {
		if session.IsNotFound(err) {
			h.SendError(c, http.StatusNotFound, err)
			return
		}
		h.SendError(c, http.StatusBadRequest, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	sub := sess.Subscribe(false)
	defer sess.Unsubscribe(sub)

	if buf := sess.Buffer(); len(buf) > 0 {
		_ = sse.WriteEvent(c.Writer, "output", buf)
	}

	done := sess.Done()
	exited := false
	sse.Pump(c.Writer, c.Request.Context().Done(), func() ([]byte, string, bool) {
		if exited {
			return nil, "", false
		}
		select {
		case data, ok := <-sub.Ch:
			if !ok {
				return nil, "", false
			}
			return data, "output", true
		case <-done:
			exited = true
			return []byte("{}"), "exit", true
		}
	})
}
