package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"classtrack/internal/queue"
)

type stubQueue struct {
	mu       sync.Mutex
	messages []queue.Message
	err      error
	received chan struct{}
}

func newStubQueue(err error) *stubQueue {
	return &stubQueue{err: err, received: make(chan struct{}, 16)}
}

func (s *stubQueue) Publish(_ context.Context, msg queue.Message) error {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.received <- struct{}{}
	return s.err
}

func (s *stubQueue) Consume(context.Context) (<-chan queue.Message, error) {
	return nil, nil
}

func waitForMessage(t *testing.T, q *stubQueue) queue.Message {
	t.Helper()
	select {
	case <-q.received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.messages[len(q.messages)-1]
}

func TestPublisherDeliversEvents(t *testing.T) {
	q := newStubQueue(nil)
	p := NewPublisher(q, 4)
	defer p.Close()

	p.Publish(context.Background(), "session.created", map[string]string{
		"session_id": "sess-1",
		"program_id": "prg-1",
	})

	msg := waitForMessage(t, q)
	require.Equal(t, "session.created", msg.Type)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(msg.Body, &payload))
	require.Equal(t, "sess-1", payload["session_id"])
	require.Equal(t, "prg-1", payload["program_id"])
}

func TestPublisherSwallowsQueueFailures(t *testing.T) {
	q := newStubQueue(errors.New("broker down"))
	p := NewPublisher(q, 4)
	defer p.Close()

	// must not panic, block or surface the error
	p.Publish(context.Background(), "session.created", map[string]string{"session_id": "sess-1"})
	waitForMessage(t, q)

	p.Publish(context.Background(), "session.created", map[string]string{"session_id": "sess-2"})
	waitForMessage(t, q)
}

func TestPublisherDropsWhenBufferFull(t *testing.T) {
	// no drain goroutine consumes fast enough to matter: buffer of 1 with a
	// queue that blocks until told
	blocked := make(chan struct{})
	q := &blockingQueue{release: blocked}
	p := NewPublisher(q, 1)
	defer p.Close()

	for i := 0; i < 10; i++ {
		p.Publish(context.Background(), "session.created", map[string]string{"n": "x"})
	}
	close(blocked)
}

type blockingQueue struct {
	release chan struct{}
}

func (b *blockingQueue) Publish(context.Context, queue.Message) error {
	<-b.release
	return nil
}

func (b *blockingQueue) Consume(context.Context) (<-chan queue.Message, error) {
	return nil, nil
}
