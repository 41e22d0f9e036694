package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-extractor/pkg/logger"
	"github.com/feichai0017/document-extractor/pkg/storage"
)

type object struct {
	data     []byte
	modified time.Time
}

// fakeClient is a single bucket held in memory.
type fakeClient struct {
	mu      sync.Mutex
	objects map[string]object
	deletes []string
	now     time.Time
	failPut error
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string]object{}, now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClient) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut != nil {
		return nil, f.failPut
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = object{data: data, modified: f.now}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data))}, nil
}

func (f *fakeClient) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeClient) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	delete(f.objects, key)
	f.deletes = append(f.deletes, key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, key := range keys {
		obj := f.objects[key]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(obj.data))),
			LastModified: aws.Time(obj.modified),
		})
	}
	return out, nil
}

func TestStoreGetDelete(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	s := NewS3StorageWithClient(client, "documents", logger.NewNop())

	key, err := s.Store(ctx, strings.NewReader("%PDF-1.4"), "uploads/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "uploads/a.pdf", key)

	data, err := storage.ReadAll(ctx, s, key)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	require.NoError(t, s.Delete(ctx, key))
	assert.Equal(t, []string{key}, client.deletes)

	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	assert.ErrorIs(t, s.Delete(ctx, key), storage.ErrObjectNotFound)
	// missing keys never reach DeleteObject
	assert.Len(t, client.deletes, 1)
}

func TestStoreFailureIsLogged(t *testing.T) {
	client := newFakeClient()
	client.failPut = errors.New("access denied")
	log := logger.NewTestLogger()
	s := NewS3StorageWithClient(client, "documents", log)

	_, err := s.Store(context.Background(), strings.NewReader("x"), "k")
	assert.ErrorContains(t, err, "failed to store file")
	assert.Equal(t, 1, log.Count("ERROR"))
}

func TestListAndStream(t *testing.T) {
	ctx := context.Background()
	s := NewS3StorageWithClient(newFakeClient(), "documents", logger.NewNop())
	for _, key := range []string{"a/1.png", "a/2.png", "b/3.png"} {
		_, err := s.Store(ctx, strings.NewReader(strings.Repeat("z", 10)), key)
		require.NoError(t, err)
	}

	objects, err := s.List(ctx, "a/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "a/1.png", objects[0].Key)
	assert.EqualValues(t, 10, objects[0].Size)

	found, err := storage.Search(ctx, s, "3")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "b/3.png", found[0].Key)

	var chunks int
	require.NoError(t, s.Stream(ctx, "a/1.png", 4, func(chunk []byte) error {
		chunks++
		return nil
	}))
	assert.Equal(t, 3, chunks)
}

func TestCleanupBefore(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	s := NewS3StorageWithClient(client, "documents", logger.NewNop())

	_, err := s.Store(ctx, strings.NewReader("old"), "old")
	require.NoError(t, err)
	client.now = client.now.Add(72 * time.Hour)
	_, err = s.Store(ctx, strings.NewReader("new"), "new")
	require.NoError(t, err)

	require.NoError(t, s.CleanupBefore(ctx, client.now.Add(-time.Hour)))
	assert.Equal(t, []string{"old"}, client.deletes)
}
