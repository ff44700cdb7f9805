// Package awsclient builds the shared AWS session and the service clients
// the stores consume. Endpoint overrides point the clients at local stacks
// (localstack, minio) without touching the store code.
package awsclient

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"

	"github.com/reserva-io/reserva/internal/config"
)

// NewSession creates the shared AWS session from the application config.
func NewSession(cfg *config.Config) (*session.Session, error) {
	sess, err := session.NewSession(aws.NewConfig().WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return sess, nil
}

// NewS3 creates the S3 client. A non-empty endpoint switches to path-style
// addressing, which local S3 stacks require.
func NewS3(sess *session.Session, endpoint string) s3iface.S3API {
	awsCfg := aws.NewConfig()
	if endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(endpoint).WithS3ForcePathStyle(true)
	}

	return s3.New(sess, awsCfg)
}

// NewSQS creates the SQS client, honoring an endpoint override.
func NewSQS(sess *session.Session, endpoint string) sqsiface.SQSAPI {
	awsCfg := aws.NewConfig()
	if endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(endpoint)
	}

	return sqs.New(sess, awsCfg)
}

// NewDynamoDB creates the DynamoDB client, honoring an endpoint override.
func NewDynamoDB(sess *session.Session, endpoint string) dynamodbiface.DynamoDBAPI {
	awsCfg := aws.NewConfig()
	if endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(endpoint)
	}

	return dynamodb.New(sess, awsCfg)
}
