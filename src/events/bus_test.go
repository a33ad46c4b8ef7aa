package events

import (
	"testing"
	"time"
)

func TestSubscribeMatchesWildcard(t *testing.T) {
	b := New()
	sub := b.Subscribe("session.*")
	defer sub.Cancel()

	b.Publish(Event{Kind: KindSessionStart})
	b.Publish(Event{Kind: KindServerUp})

	select {
	case ev := <-sub.C:
		if ev.Kind != KindSessionStart {
			t.Fatalf("expected session.start, got %s", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("expected to receive session.start")
	}

	select {
	case ev := <-sub.C:
		t.Fatalf("did not expect a second event, got %v", ev)
	default:
	}
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	b := New()
	sub := b.Subscribe("*")
	defer sub.Cancel()

	for i := 0; i < subscriberQueueSize+10; i++ {
		b.Publish(Event{Kind: KindSessionActivity})
	}

	if sub.Dropped() == 0 {
		t.Fatalf("expected some events to be dropped once queue filled")
	}
}

func TestCancelClosesChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe("*")
	sub.Cancel()

	_, open := <-sub.C
	if open {
		t.Fatalf("expected channel closed after Cancel")
	}
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected subscriber removed")
	}
}

func TestPatternMatchForms(t *testing.T) {
	cases := []struct {
		eventType, pattern string
		want                bool
	}{
		{"session.start", "*", true},
		{"session.start", "session.*", true},
		{"session.exit", "*.exit", true},
		{"server.up", "session.*", false},
		{"session.start", "", false},
	}
	for _, c := range cases {
		if got := matchPattern(c.eventType, c.pattern); got != c.want {
			t.Fatalf("matchPattern(%q,%q) = %v, want %v", c.eventType, c.pattern, got, c.want)
		}
	}
}
