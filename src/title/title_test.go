package title

import (
	"strings"
	"testing"
)

func TestFilterModeStripsTitles(t *testing.T) {
	m := New(ModeFilter, []string{"/bin/bash"}, "")
	out := m.FilterOutput([]byte("\x1b]2;app title\x07hello"), "/home/user", false, "")
	if strings.Contains(string(out), "app title") {
		t.Fatalf("expected title stripped, got %q", out)
	}
	if !strings.Contains(string(out), "hello") {
		t.Fatalf("expected payload preserved, got %q", out)
	}
}

func TestStaticModeInjectsOnlyAtPrompt(t *testing.T) {
	m := New(ModeStatic, []string{"/bin/bash"}, "work")
	noPrompt := m.FilterOutput([]byte("still running\n"), "/home/user", false, "")
	if strings.Contains(string(noPrompt), "\x1b]2;") {
		t.Fatalf("should not inject mid-burst, got %q", noPrompt)
	}
	atPrompt := m.FilterOutput([]byte("done\n$ "), "/home/user", false, "")
	if !strings.Contains(string(atPrompt), "/home/user · bash · work") {
		t.Fatalf("expected injected title at prompt, got %q", atPrompt)
	}
}

func TestNoneModePassesThrough(t *testing.T) {
	m := New(ModeNone, []string{"/bin/bash"}, "")
	in := []byte("\x1b]2;keep me\x07raw")
	out := m.FilterOutput(in, "/x", false, "")
	if string(out) != string(in) {
		t.Fatalf("expected untouched passthrough, got %q", out)
	}
}

func TestObserveInputCd(t *testing.T) {
	cases := []struct {
		line, cwd, want string
		ok              bool
	}{
		{"cd /tmp", "/home/user", "/tmp", true},
		{"cd sub", "/home/user", "/home/user/sub", true},
		{"cd ~", "/home/user", homeDir(), true},
		{"cd -", "/home/user", "", false},
		{"ls -la", "/home/user", "", false},
		{`cd "my dir"`, "/home/user", "/home/user/my dir", true},
	}
	for _, c := range cases {
		got, ok := ObserveInput(c.line, c.cwd)
		if ok != c.ok {
			t.Fatalf("line %q: expected ok=%v, got %v", c.line, c.ok, ok)
		}
		if ok && got != c.want {
			t.Fatalf("line %q: expected %q, got %q", c.line, c.want, got)
		}
	}
}

func TestScanInputLinesKeepsRemainder(t *testing.T) {
	lines, rem := ScanInputLines([]byte("cd /tmp\nls\npart"))
	if len(lines) != 2 || lines[0] != "cd /tmp" || lines[1] != "ls" {
		t.Fatalf("unexpected lines: %v", lines)
	}
	if string(rem) != "part" {
		t.Fatalf("unexpected remainder: %q", rem)
	}
}
