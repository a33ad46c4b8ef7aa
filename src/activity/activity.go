// Package activity classifies a session's output stream as active or
// idle, on a sliding last-activity timestamp, and extracts
// application-specific status strings via pluggable byte-pattern
// recognizers.
package activity

import (
	"regexp"
	"sync"
	"time"
)

// idleWindow is the sliding window after which a session with no new
// output is considered idle").
const idleWindow = 500 * time.Millisecond

// Status is a detector result, pushed to the title manager and event
// bus on transition only.
type Status struct {
	IsActive       bool
	LastActivityAt time.Time
	AppName        string
	AppStatus      string
}

// Recognizer extracts an application-specific status from a chunk of
// output: the first match of pattern is reported as AppName's status
// and cut out of the stream seen by downstream consumers.
type Recognizer struct {
	AppName string
	pattern *regexp.Regexp
}

// defaultRecognizers ship a small set of well-known TUI status markers.
// Patterns are illustrative OSC/plain-text prompts, matching the kind
// of "waiting for input" banner a coding-assistant TUI prints.
var defaultRecognizers = []Recognizer{
	{AppName: "claude", pattern: regexp.MustCompile(`\x1b\]9;4;(\d);?.*?\x07`)},
	{AppName: "claude-status", pattern: regexp.MustCompile(`(?i)\[(waiting for input|thinking|running)\]`)},
}

// Detector consumes raw output bytes and tracks activity transitions
// for a single session.
type Detector struct {
	mu            sync.Mutex
	lastByte      time.Time
	lastActive    bool
	recognizers   []Recognizer
	lastAppStatus string
}

// New creates a Detector using the default recognizer set.
func New() *Detector {
	return &Detector{recognizers: defaultRecognizers}
}

// Feed processes an output chunk. It returns the filtered chunk, with
// any recognized status markers stripped out of the returned byte
// stream, and the current status. changed reports whether this call
// caused an
// active/idle transition or a status-string change, in which case the
// caller should publish to the title manager and event bus.
func (d *Detector) Feed(chunk []byte) (filtered []byte, status Status, changed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	wasActive := d.lastActive
	d.lastByte = now
	d.lastActive = true

	filtered = chunk
	appName, appStatus := "", ""
	for _, r := range d.recognizers {
		loc := r.pattern.FindIndex(filtered)
		if loc == nil {
			continue
		}
		appName = r.AppName
		appStatus = string(r.pattern.Find(filtered))
		filtered = append(append([]byte{}, filtered[:loc[0]]...), filtered[loc[1]:]...)
	}

	changed = !wasActive || appStatus != d.lastAppStatus
	d.lastAppStatus = appStatus

	status = Status{
		IsActive:       true,
		LastActivityAt: now,
		AppName:        appName,
		AppStatus:      appStatus,
	}
	return filtered, status, changed
}

// Tick re-evaluates idle state on a cadence independent of output
// (called by the owning session's activity-tick task). Returns the
// current status and whether a transition occurred.
func (d *Detector) Tick() (Status, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	idle := time.Since(d.lastByte) > idleWindow
	wasActive := d.lastActive
	d.lastActive = !idle

	return Status{
		IsActive:       !idle,
		LastActivityAt: d.lastByte,
		AppStatus:      d.lastAppStatus,
	}, wasActive != d.lastActive
}
