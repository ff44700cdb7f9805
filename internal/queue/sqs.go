package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
)

// Long-poll settings per the queue contract: up to 20s wait, batches of up
// to 10 messages.
const (
	longPollSeconds = 20
	maxBatchSize    = 10
)

// SQSQueue implements Publisher and Receiver on top of an SQS queue.
type SQSQueue struct {
	client   sqsiface.SQSAPI
	queueURL string
}

// NewSQSQueue creates a queue adapter for the given queue URL.
func NewSQSQueue(client sqsiface.SQSAPI, queueURL string) *SQSQueue {
	return &SQSQueue{
		client:   client,
		queueURL: queueURL,
	}
}

// Publish sends one message.
func (q *SQSQueue) Publish(ctx context.Context, body []byte) error {
	_, err := q.client.SendMessageWithContext(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// Receive long-polls for up to max messages (capped at the SQS batch limit).
func (q *SQSQueue) Receive(ctx context.Context, max int64) ([]Message, error) {
	if max <= 0 || max > maxBatchSize {
		max = maxBatchSize
	}

	output, err := q.client.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: aws.Int64(max),
		WaitTimeSeconds:     aws.Int64(longPollSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	messages := make([]Message, 0, len(output.Messages))
	for _, message := range output.Messages {
		messages = append(messages, Message{
			MessageID:     aws.StringValue(message.MessageId),
			ReceiptHandle: aws.StringValue(message.ReceiptHandle),
			Body:          []byte(aws.StringValue(message.Body)),
		})
	}

	return messages, nil
}

// Delete acknowledges a message by its receipt handle.
func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	_, err := q.client.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	return nil
}
