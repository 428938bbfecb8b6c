package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/warranty-portal/internal/events"
)

const defaultBuffer = 256

// EventRelay forwards committed domain events to external sinks off the
// request path. Events are dropped with a warning when the buffer is full.
type EventRelay struct {
	queue  chan events.Event
	sinks  []events.EventHandler
	logger *zap.Logger

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	done    chan struct{}
}

// NewEventRelay builds a relay; nil sinks are skipped.
func NewEventRelay(logger *zap.Logger, buffer int, sinks ...events.EventHandler) *EventRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	relay := &EventRelay{
		queue:  make(chan events.Event, buffer),
		logger: logger,
		done:   make(chan struct{}),
	}
	for _, sink := range sinks {
		if sink != nil {
			relay.sinks = append(relay.sinks, sink)
		}
	}
	return relay
}

// Register subscribes the relay to every event on the dispatcher.
func (r *EventRelay) Register(dispatcher events.Dispatcher) {
	dispatcher.SubscribeAll(r.Enqueue)
}

// Enqueue hands an event to the background loop without blocking.
func (r *EventRelay) Enqueue(_ context.Context, event events.Event) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil
	}
	select {
	case r.queue <- event:
	default:
		r.dropped.Add(1)
		r.logger.Warn("event relay buffer full; dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID))
	}
	return nil
}

// Run delivers events until ctx is cancelled, then drains what is queued.
func (r *EventRelay) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case event := <-r.queue:
			r.deliver(ctx, event)
		case <-ctx.Done():
			r.mu.Lock()
			r.closed = true
			r.mu.Unlock()
			r.drain()
			return
		}
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (r *EventRelay) Dropped() int64 {
	return r.dropped.Load()
}

// Wait blocks until Run has returned.
func (r *EventRelay) Wait() {
	<-r.done
}

func (r *EventRelay) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event := <-r.queue:
			r.deliver(ctx, event)
		default:
			return
		}
	}
}

func (r *EventRelay) deliver(ctx context.Context, event events.Event) {
	for _, sink := range r.sinks {
		if err := sink(ctx, event); err != nil {
			r.logger.Warn("event relay delivery failed",
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.TicketID),
				zap.Error(err))
		}
	}
}
