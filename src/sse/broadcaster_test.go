package sse

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteEventFormatsDataAndEventLines(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := WriteEvent(rec, "session.exit", []byte(`{"code":0}`)); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: session.exit\n") {
		t.Fatalf("expected event line, got %q", body)
	}
	if !strings.Contains(body, `data: {"code":0}`) {
		t.Fatalf("expected data line, got %q", body)
	}
}

func TestWriteCommentFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := WriteComment(rec, "keep-alive"); err != nil {
		t.Fatalf("WriteComment: %v", err)
	}
	if rec.Body.String() != ": keep-alive\n\n" {
		t.Fatalf("unexpected comment format: %q", rec.Body.String())
	}
}

func TestPumpStopsWhenNextExhausted(t *testing.T) {
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	calls := 0
	items := [][]byte{[]byte("a"), []byte("b")}

	Pump(rec, done, func() ([]byte, string, bool) {
		if calls >= len(items) {
			return nil, "", false
		}
		v := items[calls]
		calls++
		return v, "", true
	})

	body := rec.Body.String()
	if !strings.Contains(body, "data: a") || !strings.Contains(body, "data: b") {
		t.Fatalf("expected both events written, got %q", body)
	}
}
