// Package ws implements the WebSocket terminal gateway: bidirectional
// attachment of browser clients to a live session over
// gorilla/websocket, each connection served by a pair of read/write
// pump goroutines.
package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// pingInterval keeps intermediary proxies from idling out the socket.
const pingInterval = 30 * time.Second

// writeWait bounds a single write's deadline.
const writeWait = 10 * time.Second

// Session is the narrow view the gateway needs of a live session,
// mirrored from ipc.SessionWriter so this package never imports
// package session directly.
type Session struct {
	Write    func([]byte) (int, error)
	Resize   func(cols, rows uint16, source string) error
	Kill     func(signal string) error
	Subscribe func() (<-chan []byte, func())
	Done     func() <-chan struct{}
	Buffer   func() []byte
}

// clientMessage is the JSON envelope a browser sends over the socket.
type clientMessage struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Cols uint16 `json:"cols,omitempty"`
	Rows uint16 `json:"rows,omitempty"`
}

// serverMessage is the JSON envelope the gateway sends for non-output
// events; raw output is sent as binary frames instead.
type serverMessage struct {
	Type string `json:"type"`
	Code int    `json:"code,omitempty"`
	Cols uint16 `json:"cols,omitempty"`
	Rows uint16 `json:"rows,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// CheckOrigin returns an Upgrader.CheckOrigin function that allows
// only the configured origins, plus requests with no Origin header
// (native clients, curl).
func CheckOrigin(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Serve upgrades the request and pumps data between the browser and
// the session until either side closes.
func Serve(w http.ResponseWriter, r *http.Request, sessionID string, sess Session, checkOrigin func(*http.Request) bool) error {
	up := upgrader
	up.CheckOrigin = checkOrigin
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	out, cancel := sess.Subscribe()
	defer cancel()

	if buf := sess.Buffer(); len(buf) > 0 {
		_ = conn.WriteMessage(websocket.BinaryMessage, buf)
	}

	writeDone := make(chan struct{})
	go pumpOutput(conn, out, sess.Done(), writeDone)

	readLoop(conn, sessionID, sess)
	<-writeDone
	return nil
}

func pumpOutput(conn *websocket.Conn, out <-chan []byte, sessDone <-chan struct{}, writeDone chan<- struct{}) {
	defer close(writeDone)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case data, ok := <-out:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sessDone:
			writeServerMessage(conn, serverMessage{Type: "exit"})
			return
		}
	}
}

func writeServerMessage(conn *websocket.Conn, msg serverMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

func readLoop(conn *websocket.Conn, sessionID string, sess Session) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		switch mt {
		case websocket.BinaryMessage:
			sess.Write(data)
		case websocket.TextMessage:
			var msg clientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			dispatch(conn, sessionID, sess, msg)
		}
	}
}

func dispatch(conn *websocket.Conn, sessionID string, sess Session, msg clientMessage) {
	switch msg.Type {
	case "input":
		sess.Write([]byte(msg.Data))
	case "resize":
		if err := sess.Resize(msg.Cols, msg.Rows, "browser"); err != nil {
			logrus.WithFields(logrus.Fields{"session": sessionID, "error": err}).Warn("ws: resize rejected")
		}
	case "ping":
		writeServerMessage(conn, serverMessage{Type: "pong"})
	default:
		logrus.WithFields(logrus.Fields{"session": sessionID, "type": msg.Type}).Debug("ws: unknown message type")
	}
}
