// Package recording implements the append-only per-session I/O log,
// written as newline-delimited JSON records, durable and
// crash-surviving rather than held only in memory.
package recording

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var fastJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Kind tags a recording record.
type Kind string

const (
	KindOutput Kind = "o"
	KindInput  Kind = "i"
	KindResize Kind = "r"
	KindExit   Kind = "x"
)

// Header is the first line written to a recording log.
type Header struct {
	Version   int               `json:"version"`
	Command   string            `json:"command"`
	Cols      uint16            `json:"cols"`
	Rows      uint16            `json:"rows"`
	StartedAt time.Time         `json:"startedAt"`
	Env       map[string]string `json:"env,omitempty"`
}

// Writer appends totally-ordered, time-stamped records to a session's
// recording.log. A single Writer is used by exactly one session's own
// tasks; external readers
// open a separate *os.File.
type Writer struct {
	mu      sync.Mutex
	f       *os.File
	bw      *bufio.Writer
	start   time.Time
	closed  bool
	closeOnce sync.Once
}

// Open creates (or truncates) the recording log at path and writes the header.
func Open(path string, header Header) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("recording: open %s: %w", path, err)
	}
	header.Version = 1
	header.StartedAt = time.Now()

	w := &Writer{f: f, bw: bufio.NewWriter(f), start: header.StartedAt}

	line, err := fastJSON.Marshal(header)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("recording: marshal header: %w", err)
	}
	if err := w.writeLine(line); err != nil {
		f.Close()
		return nil, err
	}
	if err := w.flushLocked(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) elapsed() float64 {
	return time.Since(w.start).Seconds()
}

// record is the on-disk shape: [tSeconds, kind, data].
type record struct {
	t    float64
	kind Kind
	data json.RawMessage
}

func (r record) MarshalJSON() ([]byte, error) {
	arr := [3]interface{}{r.t, string(r.kind), r.data}
	return fastJSON.Marshal(arr)
}

func (w *Writer) appendRecord(kind Kind, data interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	raw, err := fastJSON.Marshal(data)
	if err != nil {
		return fmt.Errorf("recording: marshal payload: %w", err)
	}
	line, err := fastJSON.Marshal(record{t: w.elapsed(), kind: kind, data: raw})
	if err != nil {
		return fmt.Errorf("recording: marshal record: %w", err)
	}
	return w.writeLine(line)
}

// writeLine must be called with mu held.
func (w *Writer) writeLine(line []byte) error {
	if _, err := w.bw.Write(line); err != nil {
		return fmt.Errorf("recording: write: %w", err)
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return fmt.Errorf("recording: write newline: %w", err)
	}
	return w.flushLocked()
}

// flushLocked flushes and fsyncs so appends survive a crash of the
// HTTP/WS layers. Must be called with mu held.
func (w *Writer) flushLocked() error {
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("recording: flush: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("recording: sync: %w", err)
	}
	return nil
}

// Output appends an output-chunk record. data is base64-encoded by the
// JSON marshaler's []byte handling.
func (w *Writer) Output(data []byte) error {
	return w.appendRecord(KindOutput, data)
}

// Input appends an input-chunk record, in send order.
func (w *Writer) Input(data []byte) error {
	return w.appendRecord(KindInput, data)
}

// Resize appends a resize record. Must be written before any
// subsequent output is appended — callers
// achieve this by calling Resize synchronously from the same
// serialization point that forwards the resize to the PTY.
func (w *Writer) Resize(cols, rows uint16) error {
	return w.appendRecord(KindResize, [2]uint16{cols, rows})
}

// Exit appends the terminal exit record and closes the log. Idempotent.
func (w *Writer) Exit(code int) error {
	if err := w.appendRecord(KindExit, code); err != nil {
		return err
	}
	return w.Close()
}

// Close is idempotent.
func (w *Writer) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		ferr := w.bw.Flush()
		serr := w.f.Sync()
		cerr := w.f.Close()
		w.mu.Unlock()
		for _, e := range []error{ferr, serr, cerr} {
			if e != nil {
				err = e
			}
		}
	})
	return err
}
