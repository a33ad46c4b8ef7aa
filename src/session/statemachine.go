package session

import "time"

// resizeGrace is the window in which a losing-source resize is
// dropped in favor of the previously recorded winner.
const resizeGrace = 1 * time.Second

// precedence ranks resize sources for the tie-break: api always wins
// over terminal and browser; browser and terminal contest each other
// within the grace window.
func precedence(k ResizeSourceKind) int {
	switch k {
	case ResizeSourceAPI:
		return 2
	case ResizeSourceBrowser:
		return 1
	case ResizeSourceTerminal:
		return 1
	default:
		return 0
	}
}

// MarkSpawned records the child's pid and transitions starting->running.
func (r *Record) MarkSpawned(pid int) {
	r.markSpawned(pid)
}

// MarkExited transitions the record to its terminal state. Returns
// false if it was already exited: repeated calls are idempotent.
func (r *Record) MarkExited(code int) bool {
	return r.markExited(code)
}

// Rename is a pure metadata mutation: callers are
// responsible for the event emission and title-refresh side effects.
func (r *Record) Rename(name string) {
	r.SetName(name)
}

// ResizeDecision is the outcome of arbitrating a resize request
// against the session's last recorded winner.
type ResizeDecision struct {
	Accepted bool
	Cols     uint16
	Rows     uint16
}

// Resize arbitrates a resize request against the currently recorded
// source: api always wins; within
// the 1s grace window a browser resize beats a terminal resize and
// vice versa; outside the window, or against no prior resize, the new
// request wins.
func (r *Record) Resize(cols, rows uint16, source ResizeSourceKind) ResizeDecision {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.resizeSource
	if !prev.Timestamp.IsZero() {
		within := time.Since(prev.Timestamp) < resizeGrace
		newRank, prevRank := precedence(source), precedence(prev.Source)
		if within && newRank < prevRank {
			return ResizeDecision{Accepted: false, Cols: r.cols, Rows: r.rows}
		}
		if within && newRank == prevRank && source != prev.Source {
			// Same-rank contest (browser vs terminal): the earlier
			// winner stands for the remainder of the grace window.
			return ResizeDecision{Accepted: false, Cols: r.cols, Rows: r.rows}
		}
	}

	r.cols, r.rows = cols, rows
	r.resizeSource = ResizeSource{Cols: cols, Rows: rows, Source: source, Timestamp: time.Now()}
	return ResizeDecision{Accepted: true, Cols: cols, Rows: rows}
}
