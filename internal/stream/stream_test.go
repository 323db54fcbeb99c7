package stream

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := s.Subscribe(ctx)
	b := s.Subscribe(ctx)

	evt := TaskEvent{TaskID: "t-1", ClientID: "c-1", TaskType: "ocr", Status: "processing", Timestamp: time.Now()}
	s.Publish(evt)

	for _, ch := range []<-chan TaskEvent{a, b} {
		select {
		case got := <-ch:
			if got.TaskID != "t-1" || got.Status != "processing" {
				t.Fatalf("unexpected event: %+v", got)
			}
		case <-time.After(time.Second):
			t.Fatalf("event not delivered")
		}
	}
}

func TestSubscribeCleansUpOnContextCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	ch := s.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel, got event")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed after cancel")
	}

	// Publishing after the subscriber is gone must not panic.
	s.Publish(TaskEvent{TaskID: "t-2"})
}

func TestPublishDropsWhenSubscriberIsSlow(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	for i := 0; i < 100; i++ {
		s.Publish(TaskEvent{TaskID: "t"})
	}
	// Buffer holds at most 16 events; the rest are dropped, not blocked on.
	if n := len(ch); n > 16 {
		t.Fatalf("buffer overflow: %d", n)
	}
}
