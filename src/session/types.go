// Package session implements the per-session state machine and the
// session manager: creation, listing, persistence, resize arbitration
// and cleanup of terminal sessions.
package session

import (
	"sync"
	"time"

	"github.com/tunnelforge/tunnelforge/src/title"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusExited   Status = "exited"
)

// TitleMode selects how the title manager treats a session's output
// stream. Aliased from package title, which owns the definition so
// that title can be built independently of session and session's
// manager can in turn depend on title without an import cycle.
type TitleMode = title.Mode

const (
	TitleModeNone    = title.ModeNone
	TitleModeFilter  = title.ModeFilter
	TitleModeStatic  = title.ModeStatic
	TitleModeDynamic = title.ModeDynamic
)

// ResizeSourceKind identifies who requested a dimension change.
type ResizeSourceKind string

const (
	ResizeSourceBrowser  ResizeSourceKind = "browser"
	ResizeSourceTerminal ResizeSourceKind = "terminal"
	ResizeSourceAPI      ResizeSourceKind = "api"
)

// ResizeSource is the latest recorded resize, used for last-resize-wins-
// with-grace arbitration.
type ResizeSource struct {
	Cols      uint16           `json:"cols"`
	Rows      uint16           `json:"rows"`
	Source    ResizeSourceKind `json:"source"`
	Timestamp time.Time        `json:"timestamp"`
}

// ActivityState mirrors the activity detector's last published result.
type ActivityState struct {
	IsActive       bool      `json:"isActive"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	AppName        string    `json:"appName,omitempty"`
	AppStatus      string    `json:"appStatus,omitempty"`
}

// Record is a session's metadata: the immutable fields set at Create
// plus the mutable fields mutated over its lifetime.
//
// Record's own mutex serializes every mutable-field read/write,
// replacing the ad-hoc resize-source/last-activity maps the sources
// kept alongside the session table.
type Record struct {
	// Immutable.
	ID         string    `json:"id"`
	Command    []string  `json:"command"`
	WorkingDir string    `json:"workingDir"`
	CreatedAt  time.Time `json:"createdAt"`

	mu sync.RWMutex

	// Mutable, guarded by mu.
	status       Status
	pid          int
	cols         uint16
	rows         uint16
	name         string
	exitCode     *int
	cwd          string
	titleMode    TitleMode
	activity     ActivityState
	resizeSource ResizeSource
	unhealthy    bool
}

// NewRecord builds a fresh record in the `starting` state.
func NewRecord(id string, command []string, workingDir string, cols, rows uint16, name string, titleMode TitleMode) *Record {
	return &Record{
		ID:         id,
		Command:    command,
		WorkingDir: workingDir,
		CreatedAt:  time.Now(),
		status:     StatusStarting,
		cols:       cols,
		rows:       rows,
		name:       name,
		cwd:        workingDir,
		titleMode:  titleMode,
	}
}

// Snapshot is an immutable copy of a Record's current state, suitable
// for JSON encoding or handing to a caller without holding any lock.
type Snapshot struct {
	ID         string        `json:"id"`
	Command    []string      `json:"command"`
	WorkingDir string        `json:"workingDir"`
	CreatedAt  time.Time     `json:"createdAt"`
	Status     Status        `json:"status"`
	PID        int           `json:"pid,omitempty"`
	Cols       uint16        `json:"cols"`
	Rows       uint16        `json:"rows"`
	Name       string        `json:"name,omitempty"`
	ExitCode   *int          `json:"exitCode,omitempty"`
	Cwd        string        `json:"cwd,omitempty"`
	TitleMode  TitleMode     `json:"titleMode"`
	Activity   ActivityState `json:"activity"`
	Unhealthy  bool          `json:"unhealthy,omitempty"`
}

// Snapshot copies out the current mutable state under a read lock.
func (r *Record) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		ID:         r.ID,
		Command:    r.Command,
		WorkingDir: r.WorkingDir,
		CreatedAt:  r.CreatedAt,
		Status:     r.status,
		PID:        r.pid,
		Cols:       r.cols,
		Rows:       r.rows,
		Name:       r.name,
		ExitCode:   r.exitCode,
		Cwd:        r.cwd,
		TitleMode:  r.titleMode,
		Activity:   r.activity,
		Unhealthy:  r.unhealthy,
	}
}

func (r *Record) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Record) Dimensions() (cols, rows uint16) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cols, r.rows
}

func (r *Record) Cwd() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cwd
}

func (r *Record) SetCwd(cwd string) {
	r.mu.Lock()
	r.cwd = cwd
	r.mu.Unlock()
}

func (r *Record) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.name
}

func (r *Record) SetName(name string) {
	r.mu.Lock()
	r.name = name
	r.mu.Unlock()
}

func (r *Record) TitleMode() TitleMode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.titleMode
}

func (r *Record) ResizeSource() ResizeSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resizeSource
}

func (r *Record) Activity() ActivityState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activity
}

func (r *Record) SetActivity(a ActivityState) {
	r.mu.Lock()
	r.activity = a
	r.mu.Unlock()
}

func (r *Record) SetUnhealthy() {
	r.mu.Lock()
	r.unhealthy = true
	r.mu.Unlock()
}

// markSpawned transitions starting -> running and records the pid.
// The pid is present if and only if status is no longer starting.
func (r *Record) markSpawned(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusStarting {
		r.status = StatusRunning
		r.pid = pid
	}
}

// markExited transitions to the terminal state at most once. Returns
// false if the record was already exited.
func (r *Record) markExited(code int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusExited {
		return false
	}
	r.status = StatusExited
	r.exitCode = &code
	return true
}

// Attachment binds a transient consumer (WebSocket, SSE, IPC client) to
// a session. Attachments are weak references: dropping one never
// destroys the session.
type Attachment struct {
	ConsumerID string
	SessionID  string
	Mode       string // "rw" or "ro"
	CreatedAt  time.Time
}
