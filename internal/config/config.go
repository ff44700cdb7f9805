package config

import (
	"errors"
	"strings"
)

const (
	defaultPageLimit            = 20
	defaultSnapshotEvery        = int64(500)
	defaultVersionConflictRetry = 1
)

var (
	// ErrEventBucketEmpty is returned when the events bucket name is an empty string.
	ErrEventBucketEmpty = errors.New("events bucket cannot be empty")
	// ErrAWSRegionEmpty is returned when the AWS region is an empty string.
	ErrAWSRegionEmpty = errors.New("AWS region cannot be empty")
)

// Config holds the application configuration shared by the command service
// and the projection worker. All values are read from the environment; see
// LoadConfig for the recognized variables.
type Config struct {
	Port              int
	JWTSecret         string
	AdminBootstrapKey string

	AWSRegion      string
	S3Endpoint     string
	S3BucketEvents string
	SQSQueueURL    string // empty disables event publishing
	SQSEndpoint    string
	DynamoEndpoint string

	UsersTable         string
	ResourcesTable     string
	ReservationsTable  string
	IdempotencyTable   string
	ProjectionLagTable string

	PageLimitDefault     int
	SnapshotEveryDefault int64
	SnapshotByStreamType map[string]int64

	VersionConflictMaxRetries              int
	EmitConcurrencyConflictUnresolvedEvent bool
}

// LoadConfig loads the application configuration from environment variables
// with fallback to defaults.
//
// A non-positive or unparseable VERSION_CONFLICT_MAX_RETRIES falls back to 1;
// zero is a valid value (no retry). SNAPSHOT_BY_STREAM_TYPE is a JSON object
// mapping stream type to snapshot threshold; a threshold of 0 disables
// snapshotting for that stream type.
func LoadConfig() *Config {
	retries := GetEnvInt("VERSION_CONFLICT_MAX_RETRIES", defaultVersionConflictRetry)
	if retries < 0 {
		retries = defaultVersionConflictRetry
	}

	return &Config{
		Port:              GetEnvInt("PORT", 8080),
		JWTSecret:         GetEnvStr("JWT_SECRET", ""),
		AdminBootstrapKey: GetEnvStr("ADMIN_BOOTSTRAP_KEY", ""),

		AWSRegion:      GetEnvStr("AWS_REGION", "us-east-1"),
		S3Endpoint:     GetEnvStr("S3_ENDPOINT", ""),
		S3BucketEvents: GetEnvStr("S3_BUCKET_EVENTS", ""),
		SQSQueueURL:    GetEnvStr("SQS_QUEUE_URL", ""),
		SQSEndpoint:    GetEnvStr("SQS_ENDPOINT", ""),
		DynamoEndpoint: GetEnvStr("DYNAMO_ENDPOINT", ""),

		UsersTable:         GetEnvStr("USERS_PROJECTION_TABLE", "users_projection"),
		ResourcesTable:     GetEnvStr("RESOURCES_PROJECTION_TABLE", "resources_projection"),
		ReservationsTable:  GetEnvStr("RESERVATIONS_PROJECTION_TABLE", "reservations_projection"),
		IdempotencyTable:   GetEnvStr("IDEMPOTENCY_TABLE", "idempotency_table"),
		ProjectionLagTable: GetEnvStr("PROJECTION_LAG_TABLE", "projection_lag"),

		PageLimitDefault:     GetEnvInt("PAGE_LIMIT_DEFAULT", defaultPageLimit),
		SnapshotEveryDefault: GetEnvInt64("SNAPSHOT_EVERY_DEFAULT", defaultSnapshotEvery),
		SnapshotByStreamType: GetEnvInt64Map("SNAPSHOT_BY_STREAM_TYPE", map[string]int64{
			"resource": defaultSnapshotEvery,
			"user":     0,
		}),

		VersionConflictMaxRetries:              retries,
		EmitConcurrencyConflictUnresolvedEvent: GetEnvBool("EMIT_CONCURRENCY_CONFLICT_UNRESOLVED_EVENT", false),
	}
}

// Validate checks if the application configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.S3BucketEvents) == "" {
		return ErrEventBucketEmpty
	}

	if strings.TrimSpace(c.AWSRegion) == "" {
		return ErrAWSRegionEmpty
	}

	return nil
}

// SnapshotThreshold returns the snapshot threshold for a stream type: the
// per-type override if present, the default otherwise. A threshold of 0
// disables snapshotting.
func (c *Config) SnapshotThreshold(streamType string) int64 {
	if threshold, ok := c.SnapshotByStreamType[streamType]; ok {
		return threshold
	}

	return c.SnapshotEveryDefault
}
