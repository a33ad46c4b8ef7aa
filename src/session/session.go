package session

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tunnelforge/tunnelforge/src/activity"
	"github.com/tunnelforge/tunnelforge/src/events"
	"github.com/tunnelforge/tunnelforge/src/pty"
	"github.com/tunnelforge/tunnelforge/src/recording"
	"github.com/tunnelforge/tunnelforge/src/title"
)

// replayBufferSize bounds the per-session output replay buffer.
const replayBufferSize = 256 * 1024

// ansiReset is prepended to a replayed buffer so truncation never
// leaves a dangling attribute escape active for a new subscriber.
const ansiReset = "\x1b[0m"

// outputSubscriberQueue bounds a live output subscriber's channel.
const outputSubscriberQueue = 256

// bellRateLimit and bellRateWindow implement the per-session bell
// token bucket: bell events are rate limited rather than emitted on
// every BEL byte, so a misbehaving program can't flood the event bus.
const (
	bellRateLimit  = 3
	bellRateWindow = 10 * time.Second
)

// activityTickInterval is the cadence of the idle-reevaluation task:
// frequent enough to catch the idleWindow transition promptly without
// burning a goroutine wakeup per byte.
const activityTickInterval = 250 * time.Millisecond

// OutputSubscriber receives a session's live output, in order. No exit
// frame is sent on Ch; consumers watch Session.Done for the exit, and
// done closes when the subscriber is unsubscribed. terminal marks a
// subscriber as terminal-attached (the vt/IPC side channel): it
// receives title-injected output, while browser subscribers (WS/SSE)
// receive the plain activity-filtered stream.
type OutputSubscriber struct {
	Ch       chan []byte
	done     chan struct{}
	terminal bool
}

// Session owns one live session's PTY handle, recording writer,
// activity detector, title manager and output fan-out. The session manager owns the Session itself.
type Session struct {
	Record *Record
	dir    string

	handle    *pty.Handle
	rec       *recording.Writer
	detector  *activity.Detector
	titleMgr  *title.Manager
	bus       *events.Bus

	mu          sync.Mutex
	buffer      []byte
	subscribers map[*OutputSubscriber]struct{}
	inputRemainder []byte

	bellMu     sync.Mutex
	bellTimes  []time.Time

	doneCh    chan struct{}
	closeOnce sync.Once
}

func newSession(rec *Record, dir string, handle *pty.Handle, writer *recording.Writer, bus *events.Bus) *Session {
	cwd := rec.WorkingDir
	if cwd == "" {
		cwd = "/"
	}
	s := &Session{
		Record:      rec,
		dir:         dir,
		handle:      handle,
		rec:         writer,
		detector:    activity.New(),
		titleMgr:    title.New(rec.TitleMode(), rec.Command, rec.Name()),
		bus:         bus,
		subscribers: make(map[*OutputSubscriber]struct{}),
		doneCh:      make(chan struct{}),
	}
	go s.readLoop()
	go s.activityTick()
	return s
}

// Dir returns the session's on-disk directory.
func (s *Session) Dir() string { return s.dir }

// readLoop is the single read-pump task for this session: read ->
// activity (and bell) -> record -> replay buffer -> fan-out, with
// title handling applied per subscriber during fan-out. Activity markers are
// stripped from the stream every consumer sees; title injection is
// applied only for terminal-attached subscribers, not browser ones.
func (s *Session) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{"session": s.Record.ID, "panic": r}).Error("session: readLoop panic")
		}
		s.finish(s.handle.Wait)
	}()

	buf := make([]byte, 4096)
	for {
		n, err := s.handle.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			s.onOutput(data)
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) onOutput(data []byte) {
	filtered, status, changed := s.detector.Feed(data)
	if changed {
		s.publishActivity(status)
	}

	if containsBell(data) && s.allowBell() {
		s.bus.Publish(events.Event{
			Kind:      events.KindSessionBell,
			SessionID: s.Record.ID,
			Timestamp: time.Now(),
		})
	}

	if s.rec != nil {
		_ = s.rec.Output(filtered)
	}
	s.appendBuffer(filtered)
	s.broadcast(filtered, status)
}

func (s *Session) publishActivity(status activity.Status) {
	s.Record.SetActivity(ActivityState{
		IsActive:       status.IsActive,
		LastActivityAt: status.LastActivityAt,
		AppName:        status.AppName,
		AppStatus:      status.AppStatus,
	})
	s.bus.Publish(events.Event{
		Kind:      events.KindSessionActivity,
		SessionID: s.Record.ID,
		Timestamp: time.Now(),
		Payload:   status,
	})
}

// activityTick re-evaluates idle state on activityTickInterval,
// independent of output, so a session that stops producing bytes
// still transitions to idle and publishes the resulting event.
func (s *Session) activityTick() {
	ticker := time.NewTicker(activityTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			status, changed := s.detector.Tick()
			if changed {
				s.publishActivity(status)
			}
		case <-s.doneCh:
			return
		}
	}
}

func containsBell(data []byte) bool {
	for _, b := range data {
		if b == 0x07 {
			return true
		}
	}
	return false
}

// allowBell enforces the token bucket (max 3 per 10s).
func (s *Session) allowBell() bool {
	s.bellMu.Lock()
	defer s.bellMu.Unlock()
	now := time.Now()
	cutoff := now.Add(-bellRateWindow)
	kept := s.bellTimes[:0]
	for _, t := range s.bellTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.bellTimes = kept
	if len(s.bellTimes) >= bellRateLimit {
		return false
	}
	s.bellTimes = append(s.bellTimes, now)
	return true
}

// Write serializes input into the PTY.
func (s *Session) Write(data []byte) (int, error) {
	s.observeCwd(data)
	if s.rec != nil {
		_ = s.rec.Input(data)
	}
	return s.handle.Write(data)
}

func (s *Session) observeCwd(data []byte) {
	s.mu.Lock()
	buf := append(s.inputRemainder, data...)
	lines, remainder := title.ScanInputLines(buf)
	s.inputRemainder = append([]byte{}, remainder...)
	s.mu.Unlock()

	cwd := s.Record.Cwd()
	for _, line := range lines {
		if next, ok := title.ObserveInput(line, cwd); ok {
			s.Record.SetCwd(next)
			cwd = next
		}
	}
}

// Resize arbitrates and forwards a resize request to the PTY, writing
// the winning resize to the recording before any subsequent output is
// appended.
func (s *Session) Resize(cols, rows uint16, source ResizeSourceKind) (ResizeDecision, error) {
	decision := s.Record.Resize(cols, rows, source)
	if !decision.Accepted {
		return decision, nil
	}
	if s.rec != nil {
		if err := s.rec.Resize(decision.Cols, decision.Rows); err != nil {
			return decision, err
		}
	}
	if err := s.handle.Resize(decision.Cols, decision.Rows); err != nil {
		return decision, err
	}
	return decision, nil
}

// Kill escalates a signal to the child process.
func (s *Session) Kill(sig pty.Signal) error {
	return s.handle.Kill(sig)
}

func (s *Session) appendBuffer(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = append(s.buffer, data...)
	if len(s.buffer) > replayBufferSize {
		excess := len(s.buffer) - replayBufferSize
		cut := excess
		limit := excess + 256
		if limit > len(s.buffer) {
			limit = len(s.buffer)
		}
		for i := excess; i < limit; i++ {
			if s.buffer[i] == '\n' {
				cut = i + 1
				break
			}
		}
		s.buffer = s.buffer[cut:]
	}
}

// Buffer returns a copy of the current replay buffer, ANSI-reset
// prefixed so a fresh subscriber never inherits a dangling attribute
// escape from truncated history.
func (s *Session) Buffer() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buffer) == 0 {
		return nil
	}
	out := make([]byte, 0, len(ansiReset)+len(s.buffer))
	out = append(out, ansiReset...)
	out = append(out, s.buffer...)
	return out
}

// broadcast fans data out to every subscriber. Terminal-attached
// subscribers (vt/IPC) receive data with the title manager's OSC-2
// injection/filter applied; browser subscribers (WS/SSE) receive the
// plain activity-filtered stream, untouched by title injection.
func (s *Session) broadcast(data []byte, status activity.Status) {
	termData := s.titleMgr.FilterOutput(data, s.Record.Cwd(), status.IsActive, status.AppStatus)

	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subscribers {
		out := data
		if sub.terminal {
			out = termData
		}
		select {
		case sub.Ch <- out:
		default:
			// Drop-oldest policy: make room for the newest frame
			// rather than stall the producer.
			select {
			case <-sub.Ch:
			default:
			}
			select {
			case sub.Ch <- out:
			default:
			}
		}
	}
}

// Subscribe registers a live output subscriber. The caller should read
// Session.Buffer() first to seed replay history before consuming Ch.
// terminal marks the subscriber as terminal-attached, receiving
// title-injected output instead of the plain browser stream.
func (s *Session) Subscribe(terminal bool) *OutputSubscriber {
	sub := &OutputSubscriber{Ch: make(chan []byte, outputSubscriberQueue), done: make(chan struct{}), terminal: terminal}
	s.mu.Lock()
	s.subscribers[sub] = struct{}{}
	s.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber; the session is unaffected.
func (s *Session) Unsubscribe(sub *OutputSubscriber) {
	s.mu.Lock()
	delete(s.subscribers, sub)
	s.mu.Unlock()
	select {
	case <-sub.done:
	default:
		close(sub.done)
	}
}

// Done is closed once the session has exited and all its output has
// been flushed to subscribers.
func (s *Session) Done() <-chan struct{} { return s.doneCh }

// finish runs once, when the child process exits: marks the record
// exited, closes the recording log, and notifies subscribers via an
// exit marker on the event bus (the transport layers translate this
// into their own exit frames).
func (s *Session) finish(wait func() (int, *pty.Signal)) {
	code, _ := wait()
	if !s.Record.MarkExited(code) {
		return
	}
	s.closeOnce.Do(func() {
		if s.rec != nil {
			_ = s.rec.Exit(code)
		}
		s.bus.Publish(events.Event{
			Kind:      events.KindSessionExit,
			SessionID: s.Record.ID,
			Timestamp: time.Now(),
			Payload:   map[string]interface{}{"exitCode": code, "unhealthy": s.Record.Snapshot().Unhealthy},
		})
		close(s.doneCh)
	})
}

// MarkUnhealthy escalates an integrity error: the session
// transitions to exited(code=-2) and is flagged unreadable.
func (s *Session) MarkUnhealthy() {
	s.Record.SetUnhealthy()
	if s.Record.MarkExited(-2) {
		s.closeOnce.Do(func() {
			s.bus.Publish(events.Event{
				Kind:      events.KindSessionExit,
				SessionID: s.Record.ID,
				Timestamp: time.Now(),
				Payload:   map[string]interface{}{"exitCode": -2, "unhealthy": true},
			})
			close(s.doneCh)
		})
	}
}
