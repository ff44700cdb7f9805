package queue

import (
	"context"
	"strconv"
	"sync"
)

// MemoryQueue is a thread-safe in-memory queue for tests and single-process
// setups. Received messages stay in-flight until deleted; Requeue puts the
// in-flight messages back, modelling at-least-once re-delivery.
type MemoryQueue struct {
	mutex    sync.Mutex
	pending  []Message
	inflight map[string]Message
	sequence int
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		inflight: make(map[string]Message),
	}
}

// Publish appends a message to the queue.
func (q *MemoryQueue) Publish(_ context.Context, body []byte) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.sequence++
	id := strconv.Itoa(q.sequence)

	q.pending = append(q.pending, Message{
		MessageID:     id,
		ReceiptHandle: id,
		Body:          append([]byte(nil), body...),
	})

	return nil
}

// Receive returns up to max pending messages and marks them in-flight.
// It never blocks; an empty queue yields an empty batch.
func (q *MemoryQueue) Receive(_ context.Context, max int64) ([]Message, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if max <= 0 {
		max = maxBatchSize
	}

	n := int64(len(q.pending))
	if n > max {
		n = max
	}

	batch := make([]Message, n)
	copy(batch, q.pending[:n])
	q.pending = q.pending[n:]

	for _, message := range batch {
		q.inflight[message.ReceiptHandle] = message
	}

	return batch, nil
}

// Delete acknowledges an in-flight message.
func (q *MemoryQueue) Delete(_ context.Context, receiptHandle string) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	delete(q.inflight, receiptHandle)

	return nil
}

// Requeue moves all in-flight messages back to pending. Test helper for
// re-delivery scenarios.
func (q *MemoryQueue) Requeue() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for handle, message := range q.inflight {
		q.pending = append(q.pending, message)

		delete(q.inflight, handle)
	}
}

// Len returns the number of pending messages. Test helper.
func (q *MemoryQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return len(q.pending)
}
