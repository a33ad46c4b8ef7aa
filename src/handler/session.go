package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tunnelforge/tunnelforge/src/session"
)

// SessionHandler exposes the session manager over HTTP: create, list,
// inspect, resize, rename, delete, and their bulk variants.
type SessionHandler struct {
	*BaseHandler
	manager *session.Manager
}

// NewSessionHandler builds a SessionHandler bound to manager.
func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{BaseHandler: NewBaseHandler(), manager: manager}
}

type createSessionRequest struct {
	Command    []string          `json:"command" binding:"required"`
	WorkingDir string            `json:"workingDir"`
	Cols       uint16            `json:"cols"`
	Rows       uint16            `json:"rows"`
	Name       string            `json:"name"`
	TitleMode  string            `json:"titleMode"`
	Env        map[string]string `json:"env"`
}

func toCreateOptions(req createSessionRequest) session.CreateOptions {
	return session.CreateOptions{
		Command:    req.Command,
		WorkingDir: req.WorkingDir,
		Cols:       req.Cols,
		Rows:       req.Rows,
		Name:       req.Name,
		TitleMode:  session.TitleMode(req.TitleMode),
		Env:        req.Env,
	}
}

// Create handles POST /sessions.
func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if err := h.BindJSON(c, &req); err != nil {
		h.SendError(c, http.StatusBadRequest, err)
		return
	}
	sess, err := h.manager.Create(toCreateOptions(req))
	if err != nil {
		h.SendError(c, http.StatusBadRequest, err)
		return
	}
	h.SendJSON(c, http.StatusCreated, sess.Record.Snapshot())
}

// List handles GET /sessions.
func (h *SessionHandler) List(c *gin.Context) {
	h.SendJSON(c, http.StatusOK, h.manager.List())
}

// Get handles GET /sessions/:id.
func (h *SessionHandler) Get(c *gin.Context) {
	id, err := h.GetPathParam(c, "id")
	if err != nil {
		h.SendError(c, http.StatusBadRequest, err)
		return
	}
	sess, err := h.manager.Get(id)
	if err != nil {
		h.sendManagerError(c, err)
		return
	}
	h.SendJSON(c, http.StatusOK, sess.Record.Snapshot())
}

// Delete handles DELETE /sessions/:id.
func (h *SessionHandler) Delete(c *gin.Context) {
	id, err := h.GetPathParam(c, "id")
	if err != nil {
		h.SendError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.manager.Delete(id); err != nil {
		h.sendManagerError(c, err)
		return
	}
	h.SendSuccess(c, "session terminated")
}

type renameRequest struct {
	Name string `json:"name" binding:"required"`
}

// Rename handles PATCH /sessions/:id.
func (h *SessionHandler) Rename(c *gin.Context) {
	id, err := h.GetPathParam(c, "id")
	if err != nil {
		h.SendError(c, http.StatusBadRequest, err)
		return
	}
	var req renameRequest
	if err := h.BindJSON(c, &req); err != nil {
		h.SendError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.manager.Rename(id, req.Name); err != nil {
		h.sendManagerError(c, err)
		return
	}
	h.SendSuccess(c, "session renamed")
}

type resizeRequest struct {
	Cols uint16 `json:"cols" binding:"required"`
	Rows uint16 `json:"rows" binding:"required"`
}

// Resize handles POST /sessions/:id/resize (source=api, always wins).
func (h *SessionHandler) Resize(c *gin.Context) {
	id, err := h.GetPathParam(c, "id")
	if err != nil {
		h.SendError(c, http.StatusBadRequest, err)
		return
	}
	var req resizeRequest
	if err := h.BindJSON(c, &req); err != nil {
		h.SendError(c, http.StatusBadRequest, err)
		return
	}
	sess, err := h.manager.Get(id)
	if err != nil {
		h.sendManagerError(c, err)
		return
	}
	decision, err := sess.Resize(req.Cols, req.Rows, session.ResizeSourceAPI)
	if err != nil {
		h.SendError(c, http.StatusInternalServerError, err)
		return
	}
	h.SendJSON(c, http.StatusOK, decision)
}

// ResetSize handles POST /sessions/:id/reset-size by re-asserting the
// session's currently recorded dimensions at api priority.
func (h *SessionHandler) ResetSize(c *gin.Context) {
	id, err := h.GetPathParam(c, "id")
	if err != nil {
		h.SendError(c, http.StatusBadRequest, err)
		return
	}
	sess, err := h.manager.Get(id)
	if err != nil {
		h.sendManagerError(c, err)
		return
	}
	cols, rows := sess.Record.Dimensions()
	decision, err := sess.Resize(cols, rows, session.ResizeSourceAPI)
	if err != nil {
		h.SendError(c, http.StatusInternalServerError, err)
		return
	}
	h.SendJSON(c, http.StatusOK, decision)
}

type inputRequest struct {
	Text string `json:"text"`
	Key  string `json:"key"`
}

// Input handles POST /sessions/:id/input: either a literal text
// payload or a named key, translated to its escape sequence.
func (h *SessionHandler) Input(c *gin.Context) {
	id, err := h.GetPathParam(c, "id")
	if err != nil {
		h.SendError(c, http.StatusBadRequest, err)
		return
	}
	var req inputRequest
	if err := h.BindJSON(c, &req); err != nil {
		h.SendError(c, http.StatusBadRequest, err)
		return
	}
	sess, err := h.manager.Get(id)
	if err != nil {
		h.sendManagerError(c, err)
		return
	}
	data := req.Text
	if req.Key != "" {
		seq, ok := keySequence(req.Key)
		if !ok {
			h.SendError(c, http.StatusBadRequest, errUnknownKey(req.Key))
			return
		}
		data = seq
	}
	if _, err := sess.Write([]byte(data)); err != nil {
		h.SendError(c, http.StatusInternalServerError, err)
		return
	}
	h.SendSuccess(c, "input sent")
}

// Buffer handles GET /sessions/:id/buffer: the ANSI-reset prefixed
// replay buffer.
func (h *SessionHandler) Buffer(c *gin.Context) {
	id, err := h.GetPathParam(c, "id")
	if err != nil {
		h.SendError(c, http.StatusBadRequest, err)
		return
	}
	sess, err := h.manager.Get(id)
	if err != nil {
		h.sendManagerError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", sess.Buffer())
}

// Cleanup handles POST /cleanup-exited.
func (h *SessionHandler) Cleanup(c *gin.Context) {
	h.SendJSON(c, http.StatusOK, gin.H{"removed": h.manager.Cleanup()})
}

type bulkCreateRequest struct {
	Sessions []createSessionRequest `json:"sessions" binding:"required"`
}

// BulkCreate handles POST /sessions/bulk.
func (h *SessionHandler) BulkCreate(c *gin.Context) {
	var req bulkCreateRequest
	if err := h.BindJSON(c, &req); err != nil {
		h.SendError(c, http.StatusBadRequest, err)
		return
	}
	opts := make([]session.CreateOptions, len(req.Sessions))
	for i, r := range req.Sessions {
		opts[i] = toCreateOptions(r)
	}
	h.SendJSON(c, http.StatusOK, h.manager.BulkCreate(opts))
}

type bulkIDsRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// BulkDelete handles POST /sessions/bulk-delete.
func (h *SessionHandler) BulkDelete(c *gin.Context) {
	var req bulkIDsRequest
	if err := h.BindJSON(c, &req); err != nil {
		h.SendError(c, http.StatusBadRequest, err)
		return
	}
	h.SendJSON(c, http.StatusOK, h.manager.BulkDelete(req.IDs))
}

type bulkResizeRequest struct {
	Resizes []struct {
		ID   string `json:"id"`
		Cols uint16 `json:"cols"`
		Rows uint16 `json:"rows"`
	} `json:"resizes" binding:"required"`
}

// BulkResize handles POST /sessions/bulk-resize.
func (h *SessionHandler) BulkResize(c *gin.Context) {
	var req bulkResizeRequest
	if err := h.BindJSON(c, &req); err != nil {
		h.SendError(c, http.StatusBadRequest, err)
		return
	}
	reqs := make([]session.BulkResize, len(req.Resizes))
	for i, r := range req.Resizes {
		reqs[i] = session.BulkResize{ID: r.ID, Cols: r.Cols, Rows: r.Rows}
	}
	h.SendJSON(c, http.StatusOK, h.manager.BulkResizeAll(reqs))
}

func (h *SessionHandler) sendManagerError(c *gin.Context, err error) {
	if session.IsNotFound(err) {
		h.SendError(c, http.StatusNotFound, err)
		return
	}
	h.SendError(c, http.StatusBadRequest, err)
}
