package queue

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_PublishReceiveDelete(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	q := NewMemoryQueue()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Publish(ctx, []byte(fmt.Sprintf(`{"seq":%d}`, i))))
	}

	batch, err := q.Receive(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, []byte(`{"seq":0}`), batch[0].Body)
	assert.Equal(t, []byte(`{"seq":1}`), batch[1].Body)
	assert.Equal(t, 1, q.Len())

	for _, message := range batch {
		require.NoError(t, q.Delete(ctx, message.ReceiptHandle))
	}

	rest, err := q.Receive(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, []byte(`{"seq":2}`), rest[0].Body)
}

func TestMemoryQueue_ReceiveEmpty(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	q := NewMemoryQueue()

	batch, err := q.Receive(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestMemoryQueue_RequeueRedelivers(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	q := NewMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, []byte(`{"seq":0}`)))
	require.NoError(t, q.Publish(ctx, []byte(`{"seq":1}`)))

	batch, err := q.Receive(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	// Only the first message is acknowledged; the second comes back.
	require.NoError(t, q.Delete(ctx, batch[0].ReceiptHandle))
	q.Requeue()

	redelivered, err := q.Receive(ctx, 10)
	require.NoError(t, err)
	require.Len(t, redelivered, 1)
	assert.Equal(t, batch[1].MessageID, redelivered[0].MessageID)
	assert.Equal(t, batch[1].Body, redelivered[0].Body)
}

func TestMemoryQueue_PublishCopiesBody(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	q := NewMemoryQueue()
	ctx := context.Background()

	body := []byte(`{"seq":0}`)
	require.NoError(t, q.Publish(ctx, body))

	body[0] = 'X'

	batch, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, []byte(`{"seq":0}`), batch[0].Body)
}
