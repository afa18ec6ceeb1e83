package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when the async publisher has no room for another event
	ErrQueueFull = errors.New("event queue is full")
	// ErrPublisherClosed is returned after Close
	ErrPublisherClosed = errors.New("event publisher is closed")
)

type queuedEvent struct {
	eventType    string
	payload      []byte
	partitionKey string
}

// AsyncPublisher hands events to a background worker so callers never wait
// on the broker. Each delivery runs under its own timeout, detached from the
// caller's context.
type AsyncPublisher struct {
	next    Publisher
	logger  *slog.Logger
	timeout time.Duration
	queue   chan queuedEvent
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsyncPublisher(next Publisher, logger *slog.Logger, buffer int, timeout time.Duration) *AsyncPublisher {
	if buffer <= 0 {
		buffer = 1
	}
	p := &AsyncPublisher{
		next:    next,
		logger:  logger,
		timeout: timeout,
		queue:   make(chan queuedEvent, buffer),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish queues the event and returns immediately
func (p *AsyncPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	select {
	case p.queue <- queuedEvent{eventType: eventType, payload: payload, partitionKey: partitionKey}:
		return nil
	default:
		p.logger.WarnContext(ctx, "event dropped, queue full", "event_type", eventType, "partition_key", partitionKey)
		return ErrQueueFull
	}
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for ev := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.next.Publish(ctx, ev.eventType, ev.payload, ev.partitionKey); err != nil {
			p.logger.Error("event not delivered",
				"event_type", ev.eventType, "partition_key", ev.partitionKey, "error", err)
		}
		cancel()
	}
}

// Close stops accepting events and waits until the queued ones are delivered
// or have timed out
func (p *AsyncPublisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
	return nil
}
