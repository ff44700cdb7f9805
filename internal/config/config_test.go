package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, "users_projection", cfg.UsersTable)
	assert.Equal(t, "idempotency_table", cfg.IdempotencyTable)
	assert.Equal(t, defaultPageLimit, cfg.PageLimitDefault)
	assert.Equal(t, defaultSnapshotEvery, cfg.SnapshotEveryDefault)
	assert.Equal(t, defaultVersionConflictRetry, cfg.VersionConflictMaxRetries)
	assert.False(t, cfg.EmitConcurrencyConflictUnresolvedEvent)
	assert.Empty(t, cfg.SQSQueueURL)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	t.Setenv("PORT", "9999")
	t.Setenv("S3_BUCKET_EVENTS", "reserva-events")
	t.Setenv("VERSION_CONFLICT_MAX_RETRIES", "3")
	t.Setenv("EMIT_CONCURRENCY_CONFLICT_UNRESOLVED_EVENT", "true")
	t.Setenv("SNAPSHOT_BY_STREAM_TYPE", `{"resource":2,"user":0}`)

	cfg := LoadConfig()

	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "reserva-events", cfg.S3BucketEvents)
	assert.Equal(t, 3, cfg.VersionConflictMaxRetries)
	assert.True(t, cfg.EmitConcurrencyConflictUnresolvedEvent)
	assert.Equal(t, map[string]int64{"resource": 2, "user": 0}, cfg.SnapshotByStreamType)
}

func TestLoadConfig_RetriesFallback(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name  string
		value string
		want  int
	}{
		{name: "negative falls back to default", value: "-5", want: defaultVersionConflictRetry},
		{name: "unparseable falls back to default", value: "lots", want: defaultVersionConflictRetry},
		{name: "zero disables retries", value: "0", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("VERSION_CONFLICT_MAX_RETRIES", tt.value)

			assert.Equal(t, tt.want, LoadConfig().VersionConflictMaxRetries)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cfg := &Config{S3BucketEvents: "reserva-events", AWSRegion: "us-east-1"}
	require.NoError(t, cfg.Validate())

	assert.ErrorIs(t, (&Config{AWSRegion: "us-east-1"}).Validate(), ErrEventBucketEmpty)
	assert.ErrorIs(t, (&Config{S3BucketEvents: "reserva-events", AWSRegion: "  "}).Validate(), ErrAWSRegionEmpty)
}

func TestConfig_SnapshotThreshold(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cfg := &Config{
		SnapshotEveryDefault: 500,
		SnapshotByStreamType: map[string]int64{"resource": 2, "user": 0},
	}

	assert.Equal(t, int64(2), cfg.SnapshotThreshold("resource"))
	assert.Equal(t, int64(0), cfg.SnapshotThreshold("user"))
	assert.Equal(t, int64(500), cfg.SnapshotThreshold("something-else"))
}

func TestGetEnvBool(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		value string
		want  bool
	}{
		{value: "true", want: true},
		{value: "1", want: true},
		{value: "YES", want: true},
		{value: "false", want: false},
		{value: "0", want: false},
		{value: "no", want: false},
		{value: "maybe", want: true}, // unparseable keeps the default
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.value)

			assert.Equal(t, tt.want, GetEnvBool("TEST_BOOL", true))
		})
	}
}
