package server

import (
	"sync"

	"chatd/internal/protocol"
)

// Queue is the unbounded FIFO between sessions (producers) and the
// broadcast worker (single consumer). Pop blocks until an item is
// available or the queue is closed; the worker sleeps instead of
// spinning. The queue lock is a leaf: no other lock is acquired while
// it is held.
type Queue struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	items    []protocol.Message
	closed   bool
}

// NewQueue returns an empty open queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.nonEmpty = sync.NewCond(&q.mu)
	return q
}

// Push enqueues one message. Pushing to a closed queue drops the
// message.
func (q *Queue) Push(msg protocol.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, msg)
	q.nonEmpty.Signal()
}

// Pop dequeues the oldest message, blocking while the queue is empty.
// ok is false once the queue is closed and drained.
func (q *Queue) Pop() (msg protocol.Message, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.nonEmpty.Wait()
	}
	if len(q.items) == 0 {
		return protocol.Message{}, false
	}
	msg = q.items[0]
	q.items = q.items[1:]
	return msg, true
}

// Close wakes all blocked consumers; queued items remain poppable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.nonEmpty.Broadcast()
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
