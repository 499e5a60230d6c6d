package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"taskflow/domain"
)

type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
	block  chan struct{}
	err    error
}

func (s *recordingSink) EnqueueEvent(ctx context.Context, ev domain.Event) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestPublisherDeliversQueuedEventsOnClose(t *testing.T) {
	sink := &recordingSink{}
	logger, _ := test.NewNullLogger()
	p := NewPublisher(sink, Config{Workers: 2, Buffer: 8}, logger)

	for i := 0; i < 5; i++ {
		if !p.Publish(domain.Event{ID: string(rune('a' + i)), Type: domain.EventImageUploaded}) {
			t.Fatalf("publish %d rejected", i)
		}
	}
	p.Close()

	if got := len(sink.Events()); got != 5 {
		t.Fatalf("expected 5 delivered events, got %d", got)
	}
}

func TestPublisherDropsWhenSaturated(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	logger, hook := test.NewNullLogger()
	p := NewPublisher(sink, Config{Workers: 1, Buffer: 1, HandoffTimeout: 5 * time.Millisecond}, logger)

	accepted := 0
	for i := 0; i < 4; i++ {
		if p.Publish(domain.Event{Type: domain.EventImageUploaded}) {
			accepted++
		}
	}
	close(sink.block)
	p.Close()

	if accepted >= 4 {
		t.Fatalf("expected some events to be dropped, accepted=%d", accepted)
	}
	if len(sink.Events()) != accepted {
		t.Fatalf("expected %d delivered, got %d", accepted, len(sink.Events()))
	}
	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == log.WarnLevel {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected saturation warning")
	}
}

func TestPublisherRejectsAfterClose(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p := NewPublisher(&recordingSink{}, Config{Workers: 1, Buffer: 1}, logger)
	p.Close()
	p.Close()

	if p.Publish(domain.Event{Type: domain.EventUserRegistered}) {
		t.Fatalf("expected publish after close to be rejected")
	}
}

func TestPublisherLogsSinkFailure(t *testing.T) {
	logger, hook := test.NewNullLogger()
	p := NewPublisher(&recordingSink{err: errors.New("queue down")}, Config{Workers: 1, Buffer: 1}, logger)

	p.Publish(domain.Event{Type: domain.EventImageUploaded, UserKey: "ann@example.com"})
	p.Close()

	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.ErrorLevel {
		t.Fatalf("expected error log entry, got %#v", entry)
	}
}
