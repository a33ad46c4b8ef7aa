package session

import (
	"bytes"
	"testing"
	"time"

	"github.com/tunnelforge/tunnelforge/src/events"
)

func TestBroadcastTitleFilterOnlyForTerminalSubscribers(t *testing.T) {
	m := newTestManager(t)
	sess, err := m.Create(CreateOptions{
		Command:   []string{"/bin/sh", "-c", "sleep 0.2; printf '\\033]2;old\\007payload'; sleep 5"},
		Cols:      80,
		Rows:      24,
		TitleMode: TitleModeFilter,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer m.Delete(sess.Record.ID)

	term := sess.Subscribe(true)
	defer sess.Unsubscribe(term)
	browser := sess.Subscribe(false)
	defer sess.Unsubscribe(browser)

	var termData, browserData []byte
	timeout := time.After(3 * time.Second)
	for len(termData) == 0 || len(browserData) == 0 {
		select {
		case d := <-term.Ch:
			termData = append(termData, d...)
		case d := <-browser.Ch:
			browserData = append(browserData, d...)
		case <-timeout:
			t.Fatalf("timed out waiting for output, term=%q browser=%q", termData, browserData)
		}
	}

	if bytes.Contains(termData, []byte("\x1b]2;")) {
		t.Fatalf("expected OSC title sequence stripped for terminal subscriber, got %q", termData)
	}
	if !bytes.Contains(browserData, []byte("\x1b]2;")) {
		t.Fatalf("expected browser subscriber to see the raw OSC sequence, got %q", browserData)
	}
}

func TestActivityTickPublishesIdleTransition(t *testing.T) {
	bus := events.New()
	m, err := NewManager(t.TempDir(), bus, 0)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	sub := bus.Subscribe("session.activity")
	defer sub.Cancel()

	sess, err := m.Create(CreateOptions{Command: []string{"/bin/sh", "-c", "printf x; sleep 5"}, Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer m.Delete(sess.Record.ID)

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-sub.C:
			if ev.SessionID != sess.Record.ID {
				continue
			}
			snap := sess.Record.Snapshot()
			if !snap.Activity.IsActive {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for idle transition event")
		}
	}
}
