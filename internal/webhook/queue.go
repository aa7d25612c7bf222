package webhook

import (
	"context"
	"errors"
	"log"
)

// ErrQueueFull signals that a delivery was dropped because the in-process
// queue is saturated. The poller's next pass is the backstop for the gap.
var ErrQueueFull = errors.New("webhook queue full")

// Queue buffers accepted deliveries between the HTTP handler and the
// processing worker so the ack can return inside the provider's deadline.
type Queue struct {
	ch chan Delivery
}

// NewQueue creates a queue holding up to size pending deliveries.
func NewQueue(size int) *Queue {
	return &Queue{ch: make(chan Delivery, size)}
}

// Enqueue adds a delivery without blocking.
func (q *Queue) Enqueue(delivery Delivery) error {
	select {
	case q.ch <- delivery:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len reports the number of pending deliveries.
func (q *Queue) Len() int { return len(q.ch) }

// EventHandler processes one dequeued delivery.
type EventHandler interface {
	HandleEvent(ctx context.Context, delivery Delivery) error
}

// Processor drains the queue and dispatches deliveries to a handler.
// Handler failures are logged and swallowed; the provider already received
// its 200 and duplicates are safe by construction.
type Processor struct {
	queue   *Queue
	handler EventHandler
	logger  *log.Logger
}

// NewProcessor constructs a Processor.
func NewProcessor(queue *Queue, handler EventHandler) *Processor {
	return &Processor{
		queue:   queue,
		handler: handler,
		logger:  log.New(log.Writer(), "[webhook] ", log.LstdFlags),
	}
}

// SetLogger overrides the logger, primarily for tests.
func (p *Processor) SetLogger(logger *log.Logger) { p.logger = logger }

// Run blocks processing deliveries until the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery := <-p.queue.ch:
			if err := p.handler.HandleEvent(ctx, delivery); err != nil {
				p.logger.Printf("event processing failed (delivery=%s): %v", delivery.ID, err)
				recordProcessingError(delivery.Event.ObjectType)
				continue
			}
			recordProcessed(delivery.Event.ObjectType, delivery.Event.AspectType)
		}
	}
}
