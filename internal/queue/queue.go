// Package queue provides the message queue adapter: publishing appended
// events for the projection worker and the receive-delete loop the worker
// drains. The wire format is one JSON-encoded recorded event per message.
package queue

import "context"

// Message is one received queue message. ReceiptHandle acknowledges the
// message on Delete; an unacknowledged message is re-delivered.
type Message struct {
	MessageID     string
	ReceiptHandle string
	Body          []byte
}

// Publisher sends one message per appended event.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// Receiver is the consuming side used by the projection worker.
type Receiver interface {
	// Receive long-polls for up to max messages.
	Receive(ctx context.Context, max int64) ([]Message, error)
	// Delete acknowledges a message after successful projection.
	Delete(ctx context.Context, receiptHandle string) error
}

// NoopPublisher drops every message. Used when no queue URL is configured
// (tests and single-process setups where the worker reads the store directly).
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, []byte) error {
	return nil
}
