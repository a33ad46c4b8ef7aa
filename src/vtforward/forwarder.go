// Package vtforward implements the local-CLI forwarder (cmd/vt): it
// creates a session over HTTP, then pumps stdio over the session's IPC
// Unix socket and forwards terminal resizes. The child's exit code is
// not passed back to the shell: the IPC stream carries no exit status.
package vtforward

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tunnelforge/tunnelforge/src/ipc"
)

// Options configures one forwarding session.
type Options struct {
	APIBase    string
	Command    []string
	WorkingDir string
	Name       string
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

type createSessionResponse struct {
	ID string `json:"id"`
}

// CreateSession calls POST {APIBase}/sessions and returns the new
// session's id.
func CreateSession(opts Options) (string, error) {
	cols, rows := terminalSize()
	body, err := json.Marshal(map[string]interface{}{
		"command":    opts.Command,
		"workingDir": opts.WorkingDir,
		"name":       opts.Name,
		"cols":       cols,
		"rows":       rows,
	})
	if err != nil {
		return "", err
	}
	resp, err := http.Post(opts.APIBase+"/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("vtforward: create session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("vtforward: create session: unexpected status %d", resp.StatusCode)
	}
	var out createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("vtforward: decode create response: %w", err)
	}
	return out.ID, nil
}

// Forward dials socketPath and pumps stdin/stdout until the remote
// session exits or the connection drops. It returns nil once the
// output stream ends: the IPC protocol carries no exit-code frame
// (only a final newline marker), so the child's exit code is not
// reported.
func Forward(socketPath string, opts Options) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("vtforward: dial %s: %w", socketPath, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		io.Copy(opts.Stdout, conn)
		close(done)
	}()

	go pumpStdin(conn, opts.Stdin)
	go watchResize(conn, done)
	go heartbeat(conn, done)

	<-done
	return nil
}

func pumpStdin(conn net.Conn, stdin io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := stdin.Read(buf)
		if n > 0 {
			if werr := ipc.WriteFrame(conn, ipc.TypeStdinData, buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func heartbeat(conn net.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := ipc.WriteFrame(conn, ipc.TypeHeartbeat, nil); err != nil {
				return
			}
		}
	}
}

func watchResize(conn net.Conn, done <-chan struct{}) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGWINCH)
	defer signal.Stop(sigCh)

	sendResize(conn)
	for {
		select {
		case <-done:
			return
		case <-sigCh:
			sendResize(conn)
		}
	}
}

func sendResize(conn net.Conn) {
	cols, rows := terminalSize()
	payload, err := json.Marshal(ipc.ControlCommand{Cmd: "resize", Cols: cols, Rows: rows})
	if err != nil {
		return
	}
	_ = ipc.WriteFrame(conn, ipc.TypeControlCmd, payload)
}

// terminalSize queries the controlling terminal's dimensions via
// TIOCGWINSZ, falling back to 80x24 when stdout is not a terminal.
func terminalSize() (cols, rows uint16) {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return 80, 24
	}
	return ws.Col, ws.Row
}
