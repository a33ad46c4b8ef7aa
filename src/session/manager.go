package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tunnelforge/tunnelforge/src/events"
	"github.com/tunnelforge/tunnelforge/src/ipc"
	"github.com/tunnelforge/tunnelforge/src/pty"
	"github.com/tunnelforge/tunnelforge/src/recording"
)

// cleanupGraceInterval is how long an exited session's directory is
// kept before Cleanup removes it.
const cleanupGraceInterval = 30 * time.Second

// CreateOptions carries the parameters of a session creation request.
type CreateOptions struct {
	Command    []string
	WorkingDir string
	Cols       uint16
	Rows       uint16
	Name       string
	TitleMode  TitleMode
	Env        map[string]string
	Aliases    pty.AliasTable
}

// Manager owns every live session record and its on-disk directory.
// Its record map is protected by a single reader-writer lock: List and
// Get (and Rename/Delete, which go through Get) take it shared; the
// insert in Create, Cleanup and external-removal reconciliation take
// it exclusive.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	controlRoot string
	bus         *events.Bus
	sockMode    os.FileMode
	watcher     *fsnotify.Watcher
}

// NewManager creates a Manager rooted at controlRoot, creating the
// directory if necessary. sockMode is the file mode used for each
// session's IPC socket; 0 falls back to 0o600. A background watcher is
// started on controlRoot so a session directory removed by something
// other than Cleanup (an operator's `rm -rf`, a misbehaving script) is
// reconciled out of the in-memory map instead of lingering forever.
func NewManager(controlRoot string, bus *events.Bus, sockMode os.FileMode) (*Manager, error) {
	if err := os.MkdirAll(controlRoot, 0o700); err != nil {
		return nil, fmt.Errorf("session: create control root: %w", err)
	}
	if sockMode == 0 {
		sockMode = 0o600
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("session: create directory watcher: %w", err)
	}
	if err := watcher.Add(controlRoot); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("session: watch control root: %w", err)
	}
	m := &Manager{
		sessions:    make(map[string]*Session),
		controlRoot: controlRoot,
		bus:         bus,
		sockMode:    sockMode,
		watcher:     watcher,
	}
	go m.watchControlRoot()
	return m, nil
}

// watchControlRoot reconciles the in-memory session map against
// external removal of a session's directory.
func (m *Manager) watchControlRoot() {
	for {
		select {
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Remove == 0 && ev.Op&fsnotify.Rename == 0 {
				continue
			}
			id := filepath.Base(ev.Name)
			m.reconcileRemoved(id)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			logrus.WithError(err).Warn("session: directory watcher error")
		}
	}
}

func (m *Manager) reconcileRemoved(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	s.MarkUnhealthy()
	m.bus.Publish(events.Event{
		Kind:      events.KindSessionReconciled,
		SessionID: id,
		Timestamp: time.Now(),
		Payload:   map[string]string{"reason": "directory removed externally"},
	})
	logrus.WithField("session", id).Warn("session: directory removed externally, reconciled out of manager")
}

// Create spawns a new session. It is transactional: if the PTY spawn fails, the directory, manifest and
// record are removed.
func (m *Manager) Create(opts CreateOptions) (*Session, error) {
	if len(opts.Command) == 0 {
		return nil, errValidation("", "command must not be empty")
	}
	if (opts.Cols == 0) != (opts.Rows == 0) || (opts.Cols == 0 && opts.Rows == 0) {
		opts.Cols, opts.Rows = pty.DefaultSize()
	}
	if opts.Cols == 0 || opts.Rows == 0 {
		return nil, errValidation("", "cols and rows must be >= 1")
	}
	if opts.TitleMode == "" {
		opts.TitleMode = TitleModeNone
	}

	id := uuid.NewString()
	dir := Dir(m.controlRoot, id)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errResource(id, "create session directory", err)
	}
	rollback := func() { os.RemoveAll(dir) }

	if err := CheckSocketPath(dir); err != nil {
		rollback()
		return nil, err
	}

	rec := NewRecord(id, opts.Command, opts.WorkingDir, opts.Cols, opts.Rows, opts.Name, opts.TitleMode)

	writer, err := recording.Open(RecordingPath(dir), recording.Header{
		Command: joinCommand(opts.Command),
		Cols:    opts.Cols,
		Rows:    opts.Rows,
		Env:     opts.Env,
	})
	if err != nil {
		rollback()
		return nil, errResource(id, "open recording log", err)
	}

	handle, serr := pty.Spawn(opts.Command, opts.Env, opts.WorkingDir, opts.Cols, opts.Rows, opts.Aliases, id)
	if serr != nil {
		writer.Close()
		rollback()
		return nil, errResource(id, fmt.Sprintf("spawn: %s", serr.Code), serr)
	}

	rec.MarkSpawned(handle.Pid())

	if err := WriteManifest(dir, ManifestOf(rec.Snapshot())); err != nil {
		handle.Close()
		writer.Close()
		rollback()
		return nil, errResource(id, "write manifest", err)
	}

	sess := newSession(rec, dir, handle, writer, m.bus)

	ipcSrv := ipc.NewServer(SocketPath(dir), sess.IPCAdapter(), m.sockMode)
	if err := ipcSrv.Listen(); err != nil {
		logrus.WithFields(logrus.Fields{"session": id, "error": err}).Warn("session: ipc socket unavailable")
	} else {
		go ipcSrv.Serve()
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	m.bus.Publish(events.Event{Kind: events.KindSessionStart, SessionID: id, Timestamp: time.Now()})

	go m.persistOnExit(sess)

	logrus.WithFields(logrus.Fields{"session": id, "command": opts.Command, "pid": handle.Pid()}).Info("session: created")
	return sess, nil
}

func joinCommand(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	out := argv[0]
	for _, a := range argv[1:] {
		out += " " + a
	}
	return out
}

// persistOnExit flushes the final manifest once a session exits, so a
// restart observes its last-known state.
func (m *Manager) persistOnExit(sess *Session) {
	<-sess.Done()
	_ = WriteManifest(sess.Dir(), ManifestOf(sess.Record.Snapshot()))
}

// List returns a consistent snapshot of every live record.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Record.Snapshot())
	}
	return out
}

// Get returns the live Session for id, or a validation error.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errNotFound(id)
	}
	return s, nil
}

// Rename updates a session's display name, rewrites its manifest and
// publishes a session.rename event. Titles injected into terminal
// output keep the name the session was created with; Rename does not
// refresh them.
func (m *Manager) Rename(id, name string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.Record.Rename(name)
	_ = WriteManifest(s.Dir(), ManifestOf(s.Record.Snapshot()))
	m.bus.Publish(events.Event{Kind: events.KindSessionRename, SessionID: id, Timestamp: time.Now(), Payload: map[string]string{"name": name}})
	return nil
}

// Delete kills a session's process; killing an already-dead process is
// a success, not an error. The record and directory are removed later
// by Cleanup, not by Delete itself.
func (m *Manager) Delete(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if s.Record.Status() == StatusExited {
		return nil
	}
	return s.Kill(syscall.SIGTERM) // Session.Kill escalates to SIGKILL after a grace period.
}

// Cleanup removes every record whose status is exited and whose
// directory is older than cleanupGraceInterval, returning the removed
// ids.
func (m *Manager) Cleanup() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []string
	for id, s := range m.sessions {
		if s.Record.Status() != StatusExited {
			continue
		}
		info, err := os.Stat(s.Dir())
		if err == nil && time.Since(info.ModTime()) < cleanupGraceInterval {
			continue
		}
		os.RemoveAll(s.Dir())
		delete(m.sessions, id)
		removed = append(removed, id)
	}
	return removed
}

// RestoreOnStartup scans controlRoot for session directories left
// over from a previous run. A process cannot be resumed across a
// server restart, so the manifest of anything previously running or
// starting is rewritten as exited(code=-1). The restored sessions are
// not added to the manager: List and Get do not report them, and
// Cleanup does not remove their directories.
func (m *Manager) RestoreOnStartup() error {
	entries, err := os.ReadDir(m.controlRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("session: scan control root: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := Dir(m.controlRoot, entry.Name())
		man, err := ReadManifest(dir)
		if err != nil {
			logrus.WithFields(logrus.Fields{"dir": dir, "err": err}).Warn("session: skipping unreadable manifest on restore")
			continue
		}
		if man.Status == StatusExited {
			continue
		}
		man.Status = StatusExited
		code := -1
		man.ExitCode = &code
		if err := WriteManifest(dir, man); err != nil {
			logrus.WithFields(logrus.Fields{"dir": dir, "err": err}).Warn("session: failed to rewrite manifest on restore")
		}
	}
	return nil
}

// BulkResult is a single element's outcome in a bulk operation; bulk
// operations never abort mid-batch, reporting per-element errors
// instead.
type BulkResult struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// BulkCreate runs Create for every opts element, continuing past
// per-element failures.
func (m *Manager) BulkCreate(opts []CreateOptions) []BulkResult {
	results := make([]BulkResult, len(opts))
	for i, o := range opts {
		sess, err := m.Create(o)
		if err != nil {
			results[i] = BulkResult{Error: err.Error()}
			continue
		}
		results[i] = BulkResult{ID: sess.Record.ID}
	}
	return results
}

// BulkDelete runs Delete for every id, continuing past per-element failures.
func (m *Manager) BulkDelete(ids []string) []BulkResult {
	results := make([]BulkResult, len(ids))
	for i, id := range ids {
		if err := m.Delete(id); err != nil {
			results[i] = BulkResult{ID: id, Error: err.Error()}
			continue
		}
		results[i] = BulkResult{ID: id}
	}
	return results
}

// BulkResize is (cols, rows) for one id in a bulk resize request.
type BulkResize struct {
	ID   string
	Cols uint16
	Rows uint16
}

// BulkResizeAll runs Resize (source api) for every element, continuing
// past per-element failures.
func (m *Manager) BulkResizeAll(reqs []BulkResize) []BulkResult {
	results := make([]BulkResult, len(reqs))
	for i, r := range reqs {
		s, err := m.Get(r.ID)
		if err != nil {
			results[i] = BulkResult{ID: r.ID, Error: err.Error()}
			continue
		}
		if _, err := s.Resize(r.Cols, r.Rows, ResizeSourceAPI); err != nil {
			results[i] = BulkResult{ID: r.ID, Error: err.Error()}
			continue
		}
		results[i] = BulkResult{ID: r.ID}
	}
	return results
}

// Shutdown tears down every live session and stops the directory
// watcher. It does not remove directories; only explicit Cleanup does
// that.
func (m *Manager) Shutdown() {
	m.watcher.Close()
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	m.bus.Publish(events.Event{Kind: events.KindServerDown, Timestamp: time.Now()})

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			_ = s.Kill(syscall.SIGKILL)
			select {
			case <-s.Done():
			case <-time.After(2 * time.Second):
			}
		}(s)
	}
	wg.Wait()
}
