package session

import (
	"fmt"
	"syscall"

	"github.com/tunnelforge/tunnelforge/src/ipc"
)

// IPCAdapter exposes a Session through the small interface the ipc
// package drives, translating its string-based resize source/signal
// names (kept string-typed there so ipc stays independent of
// package session and package pty) into the concrete session types.
func (s *Session) IPCAdapter() ipc.SessionWriter {
	return ipcAdapter{s}
}

type ipcAdapter struct{ *Session }

func (a ipcAdapter) Resize(cols, rows uint16, source string) error {
	var kind ResizeSourceKind
	switch source {
	case "api":
		kind = ResizeSourceAPI
	case "browser":
		kind = ResizeSourceBrowser
	case "terminal":
		kind = ResizeSourceTerminal
	default:
		return fmt.Errorf("session: unknown resize source %q", source)
	}
	_, err := a.Session.Resize(cols, rows, kind)
	return err
}

func (a ipcAdapter) Kill(signal string) error {
	sig := syscall.SIGTERM
	switch signal {
	case "SIGKILL":
		sig = syscall.SIGKILL
	case "SIGTERM", "":
		sig = syscall.SIGTERM
	case "SIGINT":
		sig = syscall.SIGINT
	case "SIGHUP":
		sig = syscall.SIGHUP
	}
	return a.Session.Kill(sig)
}

func (a ipcAdapter) Subscribe() (<-chan []byte, func()) {
	sub := a.Session.Subscribe(true)
	return sub.Ch, func() { a.Session.Unsubscribe(sub) }
}
