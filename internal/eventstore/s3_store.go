package eventstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

const (
	snapshotPrefix   = "snapshots"
	contentTypeJSON  = "application/json"
	versionKeyDigits = 12
)

// S3Store is the authoritative event store. Events live at
// {streamType}/{streamId}/{version:012}.json and snapshots at
// snapshots/{streamType}/{streamId}/{snapshotVersion:012}.json. Appends use
// create-if-absent on the version-keyed object, so concurrent writers racing
// for the same version produce exactly one winner; the losers observe a
// precondition failure which is normalized to ErrVersionConflict.
type S3Store struct {
	client s3iface.S3API
	bucket string
	logger *slog.Logger
}

// NewS3Store creates an event store over the given bucket.
func NewS3Store(client s3iface.S3API, bucket string, logger *slog.Logger) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		logger: logger,
	}
}

// EventKey returns the object key for an event version.
func EventKey(streamType, streamID string, version int64) string {
	return fmt.Sprintf("%s/%s/%0*d.json", streamType, streamID, versionKeyDigits, version)
}

// SnapshotKey returns the object key for a snapshot version.
func SnapshotKey(streamType, streamID string, version int64) string {
	return fmt.Sprintf("%s/%s/%s/%0*d.json", snapshotPrefix, streamType, streamID, versionKeyDigits, version)
}

// ParseVersionFromKey parses the zero-padded version out of the final path
// segment of an object key.
func ParseVersionFromKey(key string) (int64, error) {
	segment := key
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		segment = key[idx+1:]
	}

	segment = strings.TrimSuffix(segment, ".json")

	version, err := strconv.ParseInt(segment, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse version from key %q: %w", key, err)
	}

	return version, nil
}

// LoadStream lists, fetches and decodes the events of a stream starting at
// fromVersion. Eventually-consistent listings may briefly omit a just-written
// object, so a detected gap triggers exactly one full reload before the
// *GapError is surfaced.
func (s *S3Store) LoadStream(
	ctx context.Context,
	streamType, streamID string,
	fromVersion int64,
) ([]RecordedEvent, error) {
	events, err := s.loadStreamOnce(ctx, streamType, streamID, fromVersion)

	var gap *GapError
	if errors.As(err, &gap) {
		s.logger.Warn("Stream listing gap detected, retrying load once",
			slog.String("stream_type", streamType),
			slog.String("stream_id", streamID),
			slog.Int64("expected", gap.Expected),
			slog.Int64("actual", gap.Actual),
		)

		return s.loadStreamOnce(ctx, streamType, streamID, fromVersion)
	}

	return events, err
}

func (s *S3Store) loadStreamOnce(
	ctx context.Context,
	streamType, streamID string,
	fromVersion int64,
) ([]RecordedEvent, error) {
	prefix := fmt.Sprintf("%s/%s/", streamType, streamID)

	keys, err := s.listKeys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list stream %s: %w", prefix, err)
	}

	versions := make([]int64, 0, len(keys))

	for _, key := range keys {
		version, err := ParseVersionFromKey(key)
		if err != nil {
			return nil, err
		}

		if version >= fromVersion {
			versions = append(versions, version)
		}
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	expected := fromVersion
	events := make([]RecordedEvent, 0, len(versions))

	for _, version := range versions {
		if version != expected {
			return nil, &GapError{
				StreamType: streamType,
				StreamID:   streamID,
				Expected:   expected,
				Actual:     version,
			}
		}

		event, err := s.getEvent(ctx, EventKey(streamType, streamID, version))
		if err != nil {
			return nil, err
		}

		events = append(events, event)
		expected++
	}

	return events, nil
}

// LoadLatestSnapshot returns the snapshot with the highest version, or nil
// when none exists.
func (s *S3Store) LoadLatestSnapshot(ctx context.Context, streamType, streamID string) (*Snapshot, error) {
	prefix := fmt.Sprintf("%s/%s/%s/", snapshotPrefix, streamType, streamID)

	keys, err := s.listKeys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots %s: %w", prefix, err)
	}

	if len(keys) == 0 {
		return nil, nil
	}

	var (
		latestKey     string
		latestVersion int64 = -1
	)

	for _, key := range keys {
		version, err := ParseVersionFromKey(key)
		if err != nil {
			return nil, err
		}

		if version > latestVersion {
			latestVersion = version
			latestKey = key
		}
	}

	output, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(latestKey),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %s: %w", latestKey, err)
	}

	defer func() {
		_ = output.Body.Close()
	}()

	body, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", latestKey, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", latestKey, err)
	}

	return &snap, nil
}

// AppendEvent writes the event object with create-if-absent semantics. The
// key encodes the version, which is what serializes concurrent writers.
func (s *S3Store) AppendEvent(ctx context.Context, event RecordedEvent, expectedVersion int64) error {
	if event.Version != expectedVersion+1 {
		return fmt.Errorf("append precondition violated: event version %d, expected version %d",
			event.Version, expectedVersion)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	key := EventKey(event.StreamType, event.StreamID, event.Version)

	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentTypeJSON),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if isPreconditionFailure(err) {
			return ErrVersionConflict
		}

		return fmt.Errorf("failed to put event %s: %w", key, err)
	}

	return nil
}

// PutSnapshot writes the snapshot object with create-if-absent semantics.
// An already-existing snapshot at the same version is not an error: another
// writer materialized the identical state first.
func (s *S3Store) PutSnapshot(ctx context.Context, snap Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := SnapshotKey(snap.StreamType, snap.StreamID, snap.SnapshotVersion)

	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentTypeJSON),
		IfNoneMatch: aws.String("*"),
		Metadata: map[string]*string{
			"snapshotversion":  aws.String(strconv.FormatInt(snap.SnapshotVersion, 10)),
			"lasteventversion": aws.String(strconv.FormatInt(snap.LastEventVersion, 10)),
		},
	})
	if err != nil {
		if isPreconditionFailure(err) {
			return nil
		}

		return fmt.Errorf("failed to put snapshot %s: %w", key, err)
	}

	return nil
}

func (s *S3Store) listKeys(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys              []string
		continuationToken *string
	)

	for {
		output, err := s.client.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, err
		}

		for _, object := range output.Contents {
			keys = append(keys, aws.StringValue(object.Key))
		}

		if !aws.BoolValue(output.IsTruncated) {
			break
		}

		continuationToken = output.NextContinuationToken
	}

	return keys, nil
}

func (s *S3Store) getEvent(ctx context.Context, key string) (RecordedEvent, error) {
	output, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return RecordedEvent{}, fmt.Errorf("failed to get event %s: %w", key, err)
	}

	defer func() {
		_ = output.Body.Close()
	}()

	body, err := io.ReadAll(output.Body)
	if err != nil {
		return RecordedEvent{}, fmt.Errorf("failed to read event %s: %w", key, err)
	}

	var event RecordedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return RecordedEvent{}, fmt.Errorf("failed to decode event %s: %w", key, err)
	}

	return event, nil
}

// isPreconditionFailure reports whether the error is the object-store
// conditional-write conflict family. Different S3-compatible stores name the
// code differently, so both the code and the raw 412 status are checked.
func isPreconditionFailure(err error) bool {
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		switch awsErr.Code() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}

	var requestFailure awserr.RequestFailure
	if errors.As(err, &requestFailure) {
		return requestFailure.StatusCode() == 412 || requestFailure.StatusCode() == 409
	}

	return false
}
