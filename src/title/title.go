// Package title implements the OSC-2 title injection policy and cwd
// tracking: a standalone filter/injector that operates directly on PTY
// output bytes, rather than leaving title handling to a browser-side
// xterm.js bridge.
package title

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

func defaultLookupEnv(key string) (string, bool) { return os.LookupEnv(key) }

// Mode selects how a Manager treats a session's output stream. Defined
// here, not in package session, so that the session package can depend
// on title without a cycle.
type Mode string

const (
	ModeNone    Mode = "none"
	ModeFilter  Mode = "filter"
	ModeStatic  Mode = "static"
	ModeDynamic Mode = "dynamic"
)

// oscTitle matches OSC 0/1/2 title sequences, BEL- or ST-terminated.
var oscTitle = regexp.MustCompile(`\x1b\](?:0|1|2);[^\x07\x1b]*(?:\x07|\x1b\\)`)

// promptTail is a heuristic for "the burst looks like it ended at a
// shell prompt": a trailing `$ `, `# ` or `> ` after the last newline.
var promptTail = regexp.MustCompile(`[$#>]\s?$`)

// cdCommand recognizes a leading `cd` (optionally via `command`/
// `builtin`) invocation in an input line, per the resolved Open
// Question: aliases are not expanded, only this literal form.
var cdCommand = regexp.MustCompile(`^\s*(?:command\s+|builtin\s+)?cd(?:\s+(.*))?$`)

const dynamicRefreshInterval = 500 * time.Millisecond

// Manager injects/filters OSC-2 title sequences for one session's
// output stream. It keeps no cwd of its own: the caller passes the cwd
// in, tracking it from the input stream with ObserveInput.
type Manager struct {
	mode        Mode
	sessionName string
	command     []string

	lastInjected time.Time
}

// New creates a Manager for the given mode, command (used for
// basename(command) in injected titles) and session display name.
func New(mode Mode, command []string, sessionName string) *Manager {
	return &Manager{mode: mode, sessionName: sessionName, command: command}
}

// FilterOutput applies the configured mode to an output burst destined
// for a terminal-attached consumer.
func (m *Manager) FilterOutput(chunk []byte, cwd string, active bool, appStatus string) []byte {
	switch m.mode {
	case ModeNone:
		return chunk
	case ModeFilter:
		return oscTitle.ReplaceAll(chunk, nil)
	case ModeStatic:
		return m.injectStatic(chunk, cwd, "")
	case ModeDynamic:
		glyph := ""
		if appStatus != "" {
			glyph = appStatus
		} else if active {
			glyph = "●"
		}
		return m.injectStatic(chunk, cwd, glyph)
	default:
		return chunk
	}
}

// injectStatic strips existing app titles and injects at most one
// OSC-2 sequence, only when the burst ends at what looks like a
// prompt.
func (m *Manager) injectStatic(chunk []byte, cwd, prefix string) []byte {
	stripped := oscTitle.ReplaceAll(chunk, nil)
	if !promptTail.Match(stripped) {
		return stripped
	}
	if m.mode == ModeDynamic && time.Since(m.lastInjected) < dynamicRefreshInterval {
		return stripped
	}
	m.lastInjected = time.Now()

	title := cwd + " · " + filepath.Base(firstOrEmpty(m.command))
	if m.sessionName != "" {
		title += " · " + m.sessionName
	}
	if prefix != "" {
		title = prefix + " " + title
	}
	seq := "\x1b]2;" + title + "\x07"
	return append(stripped, []byte(seq)...)
}

func firstOrEmpty(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	return argv[0]
}

// ObserveInput scans an input line for a leading `cd` command and
// returns the resolved new cwd. ok is false when the line is not a cd
// invocation, or when it is `cd -` (left unresolved per the Open
// Question decision).
func ObserveInput(line string, currentCwd string) (newCwd string, ok bool) {
	m := cdCommand.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return "", false
	}
	arg := strings.TrimSpace(m[1])
	if arg == "" {
		return homeDir(), true
	}
	if arg == "-" {
		return "", false
	}
	arg = unquote(arg)
	return resolvePath(arg, currentCwd), true
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func resolvePath(arg, cwd string) string {
	if strings.HasPrefix(arg, "~") {
		arg = homeDir() + strings.TrimPrefix(arg, "~")
	}
	if filepath.IsAbs(arg) {
		return filepath.Clean(arg)
	}
	return filepath.Clean(filepath.Join(cwd, arg))
}

func homeDir() string {
	if h, ok := lookupEnv("HOME"); ok && h != "" {
		return h
	}
	return "/"
}

// lookupEnv is a seam for tests; production callers use os.LookupEnv.
var lookupEnv = defaultLookupEnv

// ScanInputLines splits a raw input chunk into newline-delimited
// pieces for ObserveInput, tolerating a chunk that does not end on a
// line boundary (the remainder is returned for the caller to prepend
// to the next chunk).
func ScanInputLines(buf []byte) (lines []string, remainder []byte) {
	parts := bytes.Split(buf, []byte("\n"))
	for _, p := range parts[:len(parts)-1] {
		lines = append(lines, string(p))
	}
	return lines, parts[len(parts)-1]
}
