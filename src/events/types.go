// Package events implements the in-process typed publish/subscribe
// bus: lifecycle, bell, activity and tunnel-state events feeding the
// SSE broadcaster and push-notification delivery.
package events

import "time"

// Kind tags an Event.
type Kind string

const (
	KindSessionStart      Kind = "session.start"
	KindSessionExit       Kind = "session.exit"
	KindSessionRename     Kind = "session.rename"
	KindSessionBell       Kind = "session.bell"
	KindSessionActivity   Kind = "session.activity"
	KindSessionReconciled Kind = "session.reconciled"
	KindServerUp          Kind = "server.up"
	KindServerDown        Kind = "server.down"
	KindTunnelStarted     Kind = "tunnel.started"
	KindTunnelStopped     Kind = "tunnel.stopped"
	KindTestNotification  Kind = "test.notification"
)

// Event is the tagged union published on the bus. Payload is
// kind-specific and left as interface{} (JSON-encodable).
type Event struct {
	Kind      Kind        `json:"kind"`
	SessionID string      `json:"sessionId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Seq       uint64      `json:"seq"`
	Payload   interface{} `json:"payload,omitempty"`
}
