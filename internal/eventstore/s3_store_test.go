package eventstore

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory S3 double honouring the subset of the API the store
// uses: conditional puts, gets, and paginated listings. hidden keys are
// omitted from listings to model eventual consistency; hideOnce removes a key
// from the hidden set after its first suppressed listing.
type fakeS3 struct {
	s3iface.S3API

	mu        sync.Mutex
	objects   map[string][]byte
	hidden    map[string]bool
	hideOnce  bool
	listCalls int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects: make(map[string][]byte),
		hidden:  make(map[string]bool),
	}
}

func (f *fakeS3) PutObjectWithContext(
	_ aws.Context, input *s3.PutObjectInput, _ ...request.Option,
) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := aws.StringValue(input.Key)

	if aws.StringValue(input.IfNoneMatch) == "*" {
		if _, exists := f.objects[key]; exists {
			return nil, awserr.New("PreconditionFailed", "object already exists", nil)
		}
	}

	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}

	f.objects[key] = body

	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObjectWithContext(
	_ aws.Context, input *s3.GetObjectInput, _ ...request.Option,
) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, ok := f.objects[aws.StringValue(input.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)
	}

	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) ListObjectsV2WithContext(
	_ aws.Context, input *s3.ListObjectsV2Input, _ ...request.Option,
) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listCalls++

	prefix := aws.StringValue(input.Prefix)

	var keys []string

	for key := range f.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		if f.hidden[key] {
			if f.hideOnce {
				delete(f.hidden, key)
			}

			continue
		}

		keys = append(keys, key)
	}

	sort.Strings(keys)

	contents := make([]*s3.Object, 0, len(keys))
	for _, key := range keys {
		contents = append(contents, &s3.Object{Key: aws.String(key)})
	}

	return &s3.ListObjectsV2Output{
		Contents:    contents,
		IsTruncated: aws.Bool(false),
	}, nil
}

func newTestS3Store(client s3iface.S3API) *S3Store {
	return NewS3Store(client, "events-test", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestEventKeyLayout(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	assert.Equal(t, "resource/r1/000000000042.json", EventKey("resource", "r1", 42))
	assert.Equal(t, "snapshots/user/u1/000000000002.json", SnapshotKey("user", "u1", 2))

	version, err := ParseVersionFromKey("resource/r1/000000000042.json")
	require.NoError(t, err)
	assert.Equal(t, int64(42), version)

	_, err = ParseVersionFromKey("resource/r1/not-a-version.json")
	require.Error(t, err)
}

func TestS3Store_AppendLoadRoundTrip(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := newTestS3Store(newFakeS3())
	ctx := context.Background()

	const k = 5

	for version := int64(1); version <= k; version++ {
		require.NoError(t, store.AppendEvent(ctx, testEvent("r1", version), version-1))
	}

	events, err := store.LoadStream(ctx, "resource", "r1", 1)
	require.NoError(t, err)
	require.Len(t, events, k)

	for i, event := range events {
		assert.Equal(t, int64(i+1), event.Version)
		assert.Equal(t, "r1", event.StreamID)
	}
}

func TestS3Store_VersionConflict(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := newTestS3Store(newFakeS3())
	ctx := context.Background()

	require.NoError(t, store.AppendEvent(ctx, testEvent("r1", 1), 0))

	err := store.AppendEvent(ctx, testEvent("r1", 1), 0)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestS3Store_GapRetriesOnceThenFails(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	client := newFakeS3()
	store := newTestS3Store(client)
	ctx := context.Background()

	for version := int64(1); version <= 3; version++ {
		require.NoError(t, store.AppendEvent(ctx, testEvent("r1", version), version-1))
	}

	// v2 never shows up in listings: the retry sees the same gap.
	client.hidden[EventKey("resource", "r1", 2)] = true
	client.listCalls = 0

	_, err := store.LoadStream(ctx, "resource", "r1", 1)

	var gap *GapError
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, int64(2), gap.Expected)
	assert.Equal(t, int64(3), gap.Actual)
	assert.Equal(t, 2, client.listCalls)
}

func TestS3Store_GapResolvedByRetry(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	client := newFakeS3()
	client.hideOnce = true
	store := newTestS3Store(client)
	ctx := context.Background()

	for version := int64(1); version <= 3; version++ {
		require.NoError(t, store.AppendEvent(ctx, testEvent("r1", version), version-1))
	}

	// v2 is missing from exactly one listing, as with an eventually
	// consistent list after a fresh write.
	client.hidden[EventKey("resource", "r1", 2)] = true

	events, err := store.LoadStream(ctx, "resource", "r1", 1)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestS3Store_SnapshotRoundTrip(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := newTestS3Store(newFakeS3())
	ctx := context.Background()

	snap, err := store.LoadLatestSnapshot(ctx, "resource", "r1")
	require.NoError(t, err)
	assert.Nil(t, snap)

	first := Snapshot{
		StreamType:       "resource",
		StreamID:         "r1",
		SnapshotVersion:  2,
		LastEventVersion: 2,
		State:            []byte(`{"resourceId":"r1"}`),
	}
	require.NoError(t, store.PutSnapshot(ctx, first))

	second := first
	second.SnapshotVersion = 4
	second.LastEventVersion = 4
	require.NoError(t, store.PutSnapshot(ctx, second))

	// Duplicate snapshot writes are swallowed.
	require.NoError(t, store.PutSnapshot(ctx, second))

	snap, err = store.LoadLatestSnapshot(ctx, "resource", "r1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(4), snap.SnapshotVersion)
}

func TestIsPreconditionFailure(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "precondition failed code", err: awserr.New("PreconditionFailed", "", nil), want: true},
		{name: "conditional request conflict code", err: awserr.New("ConditionalRequestConflict", "", nil), want: true},
		{
			name: "412 request failure",
			err:  awserr.NewRequestFailure(awserr.New("Unknown", "", nil), 412, "req-1"),
			want: true,
		},
		{
			name: "409 request failure",
			err:  awserr.NewRequestFailure(awserr.New("Unknown", "", nil), 409, "req-2"),
			want: true,
		},
		{name: "unrelated aws error", err: awserr.New("NoSuchBucket", "", nil), want: false},
		{name: "plain error", err: io.ErrUnexpectedEOF, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isPreconditionFailure(tt.err))
		})
	}
}
