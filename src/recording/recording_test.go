package recording

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriterAppendsOrderedRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recording.log")

	w, err := Open(path, Header{Command: "/bin/sh", Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := w.Resize(120, 40); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if err := w.Output([]byte("hello\n")); err != nil {
		t.Fatalf("output: %v", err)
	}
	if err := w.Input([]byte("ls\n")); err != nil {
		t.Fatalf("input: %v", err)
	}
	if err := w.Exit(0); err != nil {
		t.Fatalf("exit: %v", err)
	}

	// Close after Exit must be a no-op, not an error.
	if err := w.Close(); err != nil {
		t.Fatalf("second close should be idempotent: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if len(lines) != 5 { // header + r + o + i + x
		t.Fatalf("expected 5 lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], `"command":"/bin/sh"`) {
		t.Fatalf("expected header first, got %s", lines[0])
	}
	if !strings.Contains(lines[1], `"r"`) {
		t.Fatalf("expected resize record second, got %s", lines[1])
	}
	if !strings.Contains(lines[4], `"x"`) {
		t.Fatalf("expected exit record last, got %s", lines[4])
	}
}
