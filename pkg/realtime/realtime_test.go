package realtime

import (
	"testing"
	"time"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(2)
	id1, ch1 := hub.Register()
	_, ch2 := hub.Register()
	if hub.Size() != 2 {
		t.Fatalf("expected 2 listeners, got %d", hub.Size())
	}

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if n := hub.IndexChanged([]string{"s1"}, at); n != 2 {
		t.Errorf("expected delivery to 2 listeners, got %d", n)
	}

	for i, ch := range []<-chan Event{ch1, ch2} {
		ev := <-ch
		if ev.Type != EventIndexChanged || len(ev.Index.SpaceIDs) != 1 || ev.Index.SpaceIDs[0] != "s1" || !ev.Index.At.Equal(at) {
			t.Errorf("listener %d got %+v", i, ev)
		}
	}

	hub.Unregister(id1)
	if _, ok := <-ch1; ok {
		t.Error("expected closed channel after Unregister")
	}
	hub.Unregister(id1)
	if hub.Size() != 1 {
		t.Errorf("expected 1 listener, got %d", hub.Size())
	}
}

func TestHubDropsForSlowListener(t *testing.T) {
	hub := NewHub(1)
	_, ch := hub.Register()

	if n := hub.Broadcast(Event{Type: EventIndexChanged}); n != 1 {
		t.Fatalf("first event not delivered")
	}
	if n := hub.Broadcast(Event{Type: EventIndexChanged}); n != 0 {
		t.Errorf("expected second event to be dropped, delivered to %d", n)
	}
	<-ch
	select {
	case ev := <-ch:
		t.Errorf("unexpected buffered event %+v", ev)
	default:
	}
}
