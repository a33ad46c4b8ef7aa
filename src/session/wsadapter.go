package session

import (
	"github.com/tunnelforge/tunnelforge/src/ws"
)

// WSAdapter exposes a Session through the narrow struct-of-funcs view
// the ws package drives, following the same adapter pattern as
// IPCAdapter to keep ws independent of package session.
func (s *Session) WSAdapter() ws.Session {
	return ws.Session{
		Write: s.Write,
		Resize: func(cols, rows uint16, source string) error {
			kind := ResizeSourceBrowser
			if source == "terminal" {
				kind = ResizeSourceTerminal
			} else if source == "api" {
				kind = ResizeSourceAPI
			}
			_, err := s.Resize(cols, rows, kind)
			return err
		},
		Kill: func(signal string) error {
			return s.IPCAdapter().Kill(signal)
		},
		Subscribe: func() (<-chan []byte, func()) {
			sub := s.Subscribe(false)
			return sub.Ch, func() { s.Unsubscribe(sub) }
		},
		Done:   s.Done,
		Buffer: s.Buffer,
	}
}
