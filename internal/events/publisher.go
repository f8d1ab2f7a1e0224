package events

import (
	"context"
	"encoding/json"
	"log"

	"classtrack/internal/queue"
)

// Publisher pushes integration events onto the queue without ever blocking or
// failing the caller. Events that cannot be buffered or delivered are logged
// and dropped; a committed write must never be rolled back by a publish.
type Publisher struct {
	q   queue.Queue
	buf chan queue.Message
}

// NewPublisher starts a publisher with a bounded dispatch buffer.
func NewPublisher(q queue.Queue, buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 64
	}
	p := &Publisher{q: q, buf: make(chan queue.Message, buffer)}
	go p.drain()
	return p
}

// Publish serializes the payload and hands it to the background dispatcher.
// It never blocks: when the buffer is full the event is dropped.
func (p *Publisher) Publish(_ context.Context, name string, payload map[string]string) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("event %s: marshal failed: %v", name, err)
		return
	}
	select {
	case p.buf <- queue.Message{Type: name, Body: body}:
	default:
		log.Printf("event buffer full, dropping %s", name)
	}
}

// Close stops the dispatcher after the buffer drains.
func (p *Publisher) Close() {
	close(p.buf)
}

func (p *Publisher) drain() {
	for msg := range p.buf {
		if err := p.q.Publish(context.Background(), msg); err != nil {
			log.Printf("event publish failed for %s: %v", msg.Type, err)
		}
	}
}
