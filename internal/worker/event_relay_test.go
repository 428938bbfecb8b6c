package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/warranty-portal/internal/events"
)

func TestEventRelayDeliversToEverySink(t *testing.T) {
	first := &events.Recorder{}
	second := &events.Recorder{}
	failing := func(context.Context, events.Event) error { return errors.New("down") }
	relay := NewEventRelay(nil, 8, failing, first.Handle, nil, second.Handle)

	dispatcher := events.NewInMemoryDispatcher(nil)
	relay.Register(dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	go relay.Run(ctx)

	_ = dispatcher.Publish(context.Background(), events.Event{Type: events.EventMessagePosted, TicketID: "t1"})
	_ = dispatcher.Publish(context.Background(), events.Event{Type: events.EventStatusChanged, TicketID: "t1"})

	deadline := time.Now().Add(2 * time.Second)
	for len(second.Events()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	relay.Wait()

	if got := len(first.Events()); got != 2 {
		t.Errorf("first sink got %d events, want 2", got)
	}
	if got := len(second.Events()); got != 2 {
		t.Errorf("second sink got %d events, want 2", got)
	}
}

func TestEventRelayDropsWhenFull(t *testing.T) {
	rec := &events.Recorder{}
	relay := NewEventRelay(nil, 1, rec.Handle)

	ctx := context.Background()
	_ = relay.Enqueue(ctx, events.Event{Type: events.EventTicketCreated})
	_ = relay.Enqueue(ctx, events.Event{Type: events.EventTicketCreated})

	if got := relay.Dropped(); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	cancel()
	relay.Run(runCtx)
	if got := len(rec.Events()); got != 1 {
		t.Errorf("delivered %d events after drain, want 1", got)
	}
}
