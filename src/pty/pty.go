// Package pty spawns and supervises PTY-backed child processes: alias
// and PATH resolution, process-group kill escalation with an
// escalating signal deadline, and structured spawn errors.
package pty

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"
)

// ErrorCode enumerates the spawn failures the adapter returns.
type ErrorCode string

const (
	ErrCommandNotFound   ErrorCode = "COMMAND_NOT_FOUND"
	ErrPermissionDenied  ErrorCode = "PERMISSION_DENIED"
	ErrPTYAllocFailed    ErrorCode = "PTY_ALLOCATION_FAILED"
	ErrWorkdirMissing    ErrorCode = "WORKDIR_MISSING"
)

// SpawnError reports why a Spawn call failed.
type SpawnError struct {
	Code ErrorCode
	Err  error
}

func (e *SpawnError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// AliasTable maps a command name to a resolved argv[0] replacement,
// consulted before PATH lookup.
type AliasTable map[string]string

// ResolveKind records which resolution strategy fired, for diagnostics.
type ResolveKind string

const (
	ResolvedAlias    ResolveKind = "alias"
	ResolvedPath     ResolveKind = "path"
	ResolvedFallback ResolveKind = "shell-fallback"
)

// SessionEnvVar is set on every spawned child so the local CLI
// forwarder can detect it is already inside a managed session and
// refuse to recurse into another `vt` invocation.
const SessionEnvVar = "TUNNELFORGE_SESSION_ID"

// Handle is a live PTY-backed process.
type Handle struct {
	ptmx       *os.File
	cmd        *exec.Cmd
	mu         sync.Mutex
	closed     bool
	closeCh    chan struct{}
	usePgrp    bool
	resolution ResolveKind
}

// Spawn resolves argv[0], builds the child environment and starts the
// command attached to a new PTY. cols/rows of zero fall back to 80x24.
func Spawn(argv []string, env map[string]string, workDir string, cols, rows uint16, aliases AliasTable, sessionID string) (*Handle, *SpawnError) {
	if len(argv) == 0 {
		return nil, &SpawnError{Code: ErrCommandNotFound, Err: errors.New("empty command")}
	}

	if workDir != "" {
		if info, err := os.Stat(workDir); err != nil || !info.IsDir() {
			return nil, &SpawnError{Code: ErrWorkdirMissing, Err: fmt.Errorf("working dir %q: %w", workDir, err)}
		}
	}

	resolvedArgv, resolution := resolveCommand(argv, aliases)

	cmd := exec.Command(resolvedArgv[0], resolvedArgv[1:]...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	cmd.Env = buildEnv(env, sessionID)

	// pty.StartWithSize starts the child with Setsid, which also makes
	// it the leader of a new process group, so Kill can signal -pid.
	// Setpgid is not added: it fails with EPERM on a session leader.
	usePgrp := runtime.GOOS == "linux"

	if cols == 0 || rows == 0 {
		cols, rows = 80, 24
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, classifySpawnError(err)
	}

	logrus.WithFields(logrus.Fields{
		"argv":       resolvedArgv,
		"resolution": resolution,
		"pid":        cmd.Process.Pid,
	}).Info("pty: spawned session process")

	return &Handle{
		ptmx:       ptmx,
		cmd:        cmd,
		closeCh:    make(chan struct{}),
		usePgrp:    usePgrp,
		resolution: resolution,
	}, nil
}

// resolveCommand implements the alias -> PATH -> shell-quoted fallback
// chain.
func resolveCommand(argv []string, aliases AliasTable) ([]string, ResolveKind) {
	name := argv[0]
	if aliases != nil {
		if resolved, ok := aliases[name]; ok {
			out := append([]string{resolved}, argv[1:]...)
			return out, ResolvedAlias
		}
	}
	if path, err := exec.LookPath(name); err == nil {
		out := append([]string{path}, argv[1:]...)
		return out, ResolvedPath
	}
	if strings.ContainsRune(name, '/') {
		// An explicit path is started as given, so a missing or
		// non-executable file is reported as a spawn error instead of
		// being handed to the shell.
		return argv, ResolvedPath
	}
	// Fallback: run through a shell so builtins and quoting still work.
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return []string{shellPath(), "-c", strings.Join(quoted, " ")}, ResolvedFallback
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func shellPath() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// buildEnv exports the caller's vars plus TERM (unless overridden) and
// the recursion-guard session id env var.
func buildEnv(env map[string]string, sessionID string) []string {
	overrides := make(map[string]bool, len(env))
	for k := range env {
		overrides[k] = true
	}

	final := make([]string, 0, len(os.Environ())+len(env)+2)
	for _, kv := range os.Environ() {
		if idx := strings.IndexByte(kv, '='); idx > 0 {
			if !overrides[kv[:idx]] {
				final = append(final, kv)
			}
		}
	}
	for k, v := range env {
		final = append(final, k+"="+v)
	}
	if _, ok := env["TERM"]; !ok {
		final = append(final, "TERM=xterm-256color")
	}
	if sessionID != "" {
		final = append(final, SessionEnvVar+"="+sessionID)
	}
	return final
}

func classifySpawnError(err error) *SpawnError {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		if os.IsPermission(pathErr.Err) {
			return &SpawnError{Code: ErrPermissionDenied, Err: err}
		}
		if os.IsNotExist(pathErr.Err) {
			return &SpawnError{Code: ErrCommandNotFound, Err: err}
		}
	}
	if errors.Is(err, exec.ErrNotFound) {
		return &SpawnError{Code: ErrCommandNotFound, Err: err}
	}
	return &SpawnError{Code: ErrPTYAllocationFailedCode(), Err: err}
}

// ErrPTYAllocationFailedCode exists only so classifySpawnError reads
// naturally; it always returns ErrPTYAllocFailed.
func ErrPTYAllocationFailedCode() ErrorCode { return ErrPTYAllocFailed }

// Read reads from the PTY master (child output).
func (h *Handle) Read(p []byte) (int, error) {
	return h.ptmx.Read(p)
}

// Write writes to the PTY master (child stdin). Returns ClosedError
// semantics via io.ErrClosedPipe once the handle is closed.
func (h *Handle) Write(p []byte) (int, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	h.mu.Unlock()
	return h.ptmx.Write(p)
}

// Resize changes the terminal dimensions.
func (h *Handle) Resize(cols, rows uint16) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return io.ErrClosedPipe
	}
	return pty.Setsize(h.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}

// Signal names accepted by Kill.
type Signal = syscall.Signal

// Kill escalates SIGTERM -> SIGKILL on a 3s deadline with 500ms
// polling, unless the caller asks for SIGKILL directly, in which case
// the grace period is skipped and the adapter waits only 100ms. Safe
// to call more than once: a second call on an already-dead process is
// a success, not an error.
func (h *Handle) Kill(sig Signal) error {
	h.mu.Lock()
	if h.cmd == nil || h.cmd.Process == nil {
		h.mu.Unlock()
		return nil
	}
	pid := h.cmd.Process.Pid
	usePgrp := h.usePgrp
	h.mu.Unlock()

	target := pid
	if usePgrp {
		target = -pid
	}

	send := func(s syscall.Signal) error {
		err := syscall.Kill(target, s)
		if err != nil && !errors.Is(err, syscall.ESRCH) {
			return err
		}
		return nil
	}

	if sig == syscall.SIGKILL {
		if err := send(syscall.SIGKILL); err != nil {
			return err
		}
		time.Sleep(100 * time.Millisecond)
		return nil
	}

	if err := send(sig); err != nil {
		return err
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return send(syscall.SIGKILL)
}

func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

// Wait blocks until the child exits, returning its exit code and, if
// it died from a signal, the terminating signal.
func (h *Handle) Wait() (exitCode int, termSignal *syscall.Signal) {
	err := h.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			sig := ws.Signal()
			return 128 + int(sig), &sig
		}
		return exitErr.ExitCode(), nil
	}
	return -1, nil
}

// Close tears down the PTY and kills the process tree. Idempotent.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	close(h.closeCh)
	h.mu.Unlock()

	if h.ptmx != nil {
		_ = h.ptmx.Close()
	}
	_ = h.Kill(syscall.SIGKILL)
	return nil
}

// Done is closed once Close has run.
func (h *Handle) Done() <-chan struct{} { return h.closeCh }

// Pid returns the child's process id, or 0 if not started.
func (h *Handle) Pid() int {
	if h.cmd == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Resolution reports which argv[0] resolution strategy fired.
func (h *Handle) Resolution() ResolveKind { return h.resolution }

// DefaultSize returns the controlling terminal's size, falling back to
// 80x24 when stdout is not a terminal.
func DefaultSize() (cols, rows uint16) {
	if ws, err := pty.GetsizeFull(os.Stdout); err == nil && ws.Cols > 0 && ws.Rows > 0 {
		return ws.Cols, ws.Rows
	}
	return 80, 24
}
