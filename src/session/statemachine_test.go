package session

import (
	"testing"
	"time"
)

func TestResizeArbitrationBrowserBeatsTerminalWithinGrace(t *testing.T) {
	r := NewRecord("s1", []string{"/bin/sh"}, "", 80, 24, "", TitleModeNone)

	d := r.Resize(120, 40, ResizeSourceBrowser)
	if !d.Accepted {
		t.Fatalf("expected first resize accepted")
	}

	d = r.Resize(90, 30, ResizeSourceTerminal)
	if d.Accepted {
		t.Fatalf("expected terminal resize to be dropped within grace window")
	}
	cols, rows := r.Dimensions()
	if cols != 120 || rows != 40 {
		t.Fatalf("expected dims to remain 120x40, got %dx%d", cols, rows)
	}
}

func TestResizeArbitrationAPIAlwaysWins(t *testing.T) {
	r := NewRecord("s1", []string{"/bin/sh"}, "", 80, 24, "", TitleModeNone)
	r.Resize(120, 40, ResizeSourceBrowser)

	d := r.Resize(100, 35, ResizeSourceAPI)
	if !d.Accepted {
		t.Fatalf("expected api resize to always win")
	}
	cols, rows := r.Dimensions()
	if cols != 100 || rows != 35 {
		t.Fatalf("expected dims 100x35, got %dx%d", cols, rows)
	}
}

func TestResizeArbitrationOutsideGraceWindow(t *testing.T) {
	r := NewRecord("s1", []string{"/bin/sh"}, "", 80, 24, "", TitleModeNone)
	r.Resize(120, 40, ResizeSourceBrowser)
	r.mu.Lock()
	r.resizeSource.Timestamp = time.Now().Add(-2 * time.Second)
	r.mu.Unlock()

	d := r.Resize(90, 30, ResizeSourceTerminal)
	if !d.Accepted {
		t.Fatalf("expected resize outside grace window to be accepted")
	}
}

func TestMarkExitedIdempotent(t *testing.T) {
	r := NewRecord("s1", []string{"/bin/sh"}, "", 80, 24, "", TitleModeNone)
	if !r.MarkExited(0) {
		t.Fatalf("expected first MarkExited to succeed")
	}
	if r.MarkExited(1) {
		t.Fatalf("expected second MarkExited to be a no-op")
	}
	snap := r.Snapshot()
	if snap.ExitCode == nil || *snap.ExitCode != 0 {
		t.Fatalf("expected exit code to remain 0 from first call")
	}
}
