package session

import (
	"testing"
	"time"

	"github.com/tunnelforge/tunnelforge/src/events"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	bus := events.New()
	m, err := NewManager(t.TempDir(), bus, 0)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestCreateListGetDelete(t *testing.T) {
	m := newTestManager(t)

	sess, err := m.Create(CreateOptions{Command: []string{"/bin/sh", "-c", "echo hi; sleep 5"}, Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	list := m.List()
	if len(list) != 1 || list[0].ID != sess.Record.ID {
		t.Fatalf("expected one listed session, got %v", list)
	}

	got, err := m.Get(sess.Record.ID)
	if err != nil || got != sess {
		t.Fatalf("Get returned wrong session: %v %v", got, err)
	}

	if err := m.Delete(sess.Record.ID); err != nil {
		t.Fatalf("first Delete: %v", err)
	}
	if err := m.Delete(sess.Record.ID); err != nil {
		t.Fatalf("second Delete should be idempotent: %v", err)
	}

	select {
	case <-sess.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("expected session to exit after Delete")
	}
}

func TestCreateRejectsEmptyCommand(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Create(CreateOptions{}); err == nil {
		t.Fatalf("expected validation error for empty command")
	}
}

func TestCreateRollsBackOnSpawnFailure(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create(CreateOptions{Command: []string{"/definitely/not/a/real/binary-xyz"}, Cols: 80, Rows: 24})
	if err == nil {
		t.Fatalf("expected spawn failure")
	}
	if len(m.List()) != 0 {
		t.Fatalf("expected no session recorded after rollback")
	}
}

func TestEchoSessionExitsWithZero(t *testing.T) {
	m := newTestManager(t)
	sess, err := m.Create(CreateOptions{Command: []string{"/bin/sh", "-c", "echo hi; exit 0"}, Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	select {
	case <-sess.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("expected session to exit")
	}

	snap := sess.Record.Snapshot()
	if snap.Status != StatusExited || snap.ExitCode == nil || *snap.ExitCode != 0 {
		t.Fatalf("expected clean exit, got %+v", snap)
	}
}

func TestBulkDeleteReportsPerElementErrors(t *testing.T) {
	m := newTestManager(t)
	ok, err := m.Create(CreateOptions{Command: []string{"/bin/sh", "-c", "sleep 5"}, Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	results := m.BulkDelete([]string{ok.Record.ID, "missing-id"})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Error != "" {
		t.Fatalf("expected first delete to succeed, got %v", results[0])
	}
	if results[1].Error == "" {
		t.Fatalf("expected second delete to report an error")
	}
}
