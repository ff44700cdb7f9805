package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

// DynamoStore persists idempotency records in a DynamoDB table keyed by
// idempotencyKey. Insert-if-absent is enforced with an attribute_not_exists
// condition, which serializes duplicate submissions racing past Load.
type DynamoStore struct {
	client dynamodbiface.DynamoDBAPI
	table  string
}

// recordItem is the table shape of a Record. Timestamps are stored as
// RFC3339 strings; dynamodbattribute has no native time.Time encoding.
type recordItem struct {
	IdempotencyKey string `dynamodbav:"idempotencyKey"`
	ContentHash    string `dynamodbav:"contentHash"`
	StatusCode     int    `dynamodbav:"statusCode"`
	ResponseBody   string `dynamodbav:"responseBody"`
	CreatedAtUTC   string `dynamodbav:"createdAtUtc"`
}

// NewDynamoStore creates a record store over the given table.
func NewDynamoStore(client dynamodbiface.DynamoDBAPI, table string) *DynamoStore {
	return &DynamoStore{
		client: client,
		table:  table,
	}
}

// Load returns the record for a key, or nil when absent.
func (s *DynamoStore) Load(ctx context.Context, key string) (*Record, error) {
	output, err := s.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]*dynamodb.AttributeValue{
			"idempotencyKey": {S: aws.String(key)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}

	if output.Item == nil {
		return nil, nil
	}

	var item recordItem
	if err := dynamodbattribute.UnmarshalMap(output.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to decode idempotency record: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAtUTC)
	if err != nil {
		return nil, fmt.Errorf("failed to parse idempotency record timestamp: %w", err)
	}

	return &Record{
		IdempotencyKey: item.IdempotencyKey,
		ContentHash:    item.ContentHash,
		StatusCode:     item.StatusCode,
		ResponseBody:   item.ResponseBody,
		CreatedAtUTC:   createdAt,
	}, nil
}

// Save inserts a record if absent. A conditional check failure maps to
// ErrAlreadyExists.
func (s *DynamoStore) Save(ctx context.Context, record Record) error {
	item, err := dynamodbattribute.MarshalMap(recordItem{
		IdempotencyKey: record.IdempotencyKey,
		ContentHash:    record.ContentHash,
		StatusCode:     record.StatusCode,
		ResponseBody:   record.ResponseBody,
		CreatedAtUTC:   record.CreatedAtUTC.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to encode idempotency record: %w", err)
	}

	_, err = s.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(idempotencyKey)"),
	})
	if err != nil {
		var awsErr awserr.Error
		if errors.As(err, &awsErr) && awsErr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return ErrAlreadyExists
		}

		return fmt.Errorf("failed to put idempotency record: %w", err)
	}

	return nil
}
