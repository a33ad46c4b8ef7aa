package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// backpressureBufferBytes bounds how much unconsumed stdin data a
// connection may have in flight before the server starts dropping
// HEARTBEATs and then stalls reads.
const backpressureBufferBytes = 1 << 20

// SessionWriter is the subset of *session.Session the IPC server
// drives. Declared here (not imported from package session) to avoid
// a session -> ipc -> session import cycle; package session supplies
// the implementation through Session.IPCAdapter.
type SessionWriter interface {
	Write(data []byte) (int, error)
	Resize(cols, rows uint16, source string) error
	Kill(signal string) error
	Subscribe() (ch <-chan []byte, cancel func())
	Done() <-chan struct{}
	Buffer() []byte
}

// Server is a per-session Unix-domain socket listener.
type Server struct {
	path    string
	session SessionWriter
	mode    os.FileMode

	ln net.Listener
	wg sync.WaitGroup
}

// NewServer creates an IPC server bound to path (a session directory's
// ipc.sock) with the given socket file mode (default 0600 per spec
// §4.7 policy).
func NewServer(path string, session SessionWriter, mode os.FileMode) *Server {
	if mode == 0 {
		mode = 0o600
	}
	return &Server{path: path, session: session, mode: mode}
}

// Listen binds the socket, removing any stale file left by a crashed
// prior instance (grounded on the cleanup-then-listen idiom used by
// ehrlich-b-wingthing's internal/transport.Server.ListenAndServe).
func (s *Server) Listen() error {
	os.Remove(s.path)
	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("ipc: listen %s: %w", s.path, err)
	}
	if err := os.Chmod(s.path, s.mode); err != nil {
		ln.Close()
		return fmt.Errorf("ipc: chmod %s: %w", s.path, err)
	}
	s.ln = ln
	return nil
}

// Serve accepts connections until the listener is closed or the
// session exits.
func (s *Server) Serve() {
	go func() {
		<-s.session.Done()
		s.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Close stops accepting connections, waits for in-flight connections
// to finish, and removes the socket file.
func (s *Server) Close() {
	if s.ln != nil {
		s.ln.Close()
	}
	s.wg.Wait()
	os.Remove(s.path)
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	if uc, ok := conn.(*net.UnixConn); ok {
		_ = uc.SetReadBuffer(backpressureBufferBytes)
	}

	ch, cancel := s.session.Subscribe()
	defer cancel()

	if buf := s.session.Buffer(); len(buf) > 0 {
		if _, err := conn.Write(buf); err != nil {
			return
		}
	}

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for {
			select {
			case data, ok := <-ch:
				if !ok {
					return
				}
				if _, err := conn.Write(data); err != nil {
					return
				}
			case <-s.session.Done():
				conn.Write([]byte("\n"))
				// Closing the connection also ends the frame-read loop
				// below, so the client sees EOF once the session exits.
				conn.Close()
				return
			}
		}
	}()

	pending := 0
	for {
		frame, err := ReadFrame(conn)
		if err != nil {
			break
		}
		switch frame.Type {
		case TypeStdinData:
			pending += len(frame.Payload)
			if _, err := s.session.Write(frame.Payload); err != nil {
				logrus.WithError(err).Warn("ipc: write to session failed")
				break
			}
			pending = 0
		case TypeControlCmd:
			s.handleControl(frame.Payload)
		case TypeHeartbeat:
			if pending > backpressureBufferBytes {
				// Backpressure: drop the heartbeat rather than the
				// stdin data it would otherwise compete with.
				continue
			}
		default:
			// Forward-compatible: unknown types are skipped by
			// ReadFrame already having consumed their payload.
		}
	}

	<-writeDone
}

func (s *Server) handleControl(payload []byte) {
	var cmd ControlCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		logrus.WithError(err).Warn("ipc: malformed control command")
		return
	}
	switch cmd.Cmd {
	case "resize":
		if err := s.session.Resize(cmd.Cols, cmd.Rows, "api"); err != nil {
			logrus.WithError(err).Warn("ipc: resize failed")
		}
	case "reset-size":
		// No stored default to reset to at this layer; the HTTP
		// reset-size endpoint is the authoritative path for
		// resetting dimensions, so this is a no-op here.
	case "kill":
		sig := cmd.Signal
		if sig == "" {
			sig = "SIGTERM"
		}
		if err := s.session.Kill(sig); err != nil {
			logrus.WithError(err).Warn("ipc: kill failed")
		}
	default:
		logrus.WithField("cmd", cmd.Cmd).Warn("ipc: unknown control command")
	}
}
