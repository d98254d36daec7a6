package sink

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pkt.systems/measurements/internal/settings"
)

func TestFileWriteIsAtomic(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w := NewFile(fsys, "out/measurements.json")

	require.NoError(t, w.Write(context.Background(), []byte(`{"collections":[]}`)))

	got, err := afero.ReadFile(fsys, "out/measurements.json")
	require.NoError(t, err)
	assert.Equal(t, `{"collections":[]}`, string(got))

	entries, err := afero.ReadDir(fsys, "out")
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must not survive")
	assert.Equal(t, "measurements.json", entries[0].Name())
}

func TestFileWriteOverwrites(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "m.json", []byte("old"), 0o644))

	require.NoError(t, NewFile(fsys, "m.json").Write(context.Background(), []byte("new")))
	got, err := afero.ReadFile(fsys, "m.json")
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestFileWriteFailureLeavesNothing(t *testing.T) {
	base := afero.NewMemMapFs()
	ro := afero.NewReadOnlyFs(base)

	err := NewFile(ro, "out/m.json").Write(context.Background(), []byte("x"))
	require.Error(t, err)
	exists, _ := afero.Exists(base, "out/m.json")
	assert.False(t, exists)
}

func TestFileWriteHonorsCancellation(t *testing.T) {
	fsys := afero.NewMemMapFs()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewFile(fsys, "m.json").Write(ctx, []byte("x"))
	require.ErrorIs(t, err, context.Canceled)
	exists, _ := afero.Exists(fsys, "m.json")
	assert.False(t, exists)
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Write(t *testing.T) {
	fake := &fakePutter{}
	w := NewS3WithClient(fake, "bucket", "exports/m.json")

	require.NoError(t, w.Write(context.Background(), []byte(`{}`)))
	assert.Equal(t, "bucket", aws.ToString(fake.input.Bucket))
	assert.Equal(t, "exports/m.json", aws.ToString(fake.input.Key))
	assert.Equal(t, "application/json", aws.ToString(fake.input.ContentType))
	assert.Equal(t, `{}`, string(fake.body))
	assert.Equal(t, "s3://bucket/exports/m.json", w.Target())
}

func TestS3WriteError(t *testing.T) {
	fake := &fakePutter{err: errors.New("denied")}
	err := NewS3WithClient(fake, "bucket", "m.json").Write(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://bucket/m.json")
}

type recordingTransport struct {
	mu       sync.Mutex
	requests []*http.Request
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.mu.Lock()
	rt.requests = append(rt.requests, req)
	rt.mu.Unlock()
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Etag": []string{`"abc"`}},
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    req,
	}, nil
}

func TestNewS3UsesEndpointAndPathStyle(t *testing.T) {
	rt := &recordingTransport{}
	w, err := NewS3(context.Background(), S3Config{
		Region:          "us-east-1",
		Bucket:          "mock-bucket",
		Key:             "out/m.json",
		Endpoint:        "https://mock.s3.local",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
	}, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
	})
	require.NoError(t, err)

	require.NoError(t, w.Write(context.Background(), []byte(`{"collections":[]}`)))
	require.Len(t, rt.requests, 1)
	req := rt.requests[0]
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "mock.s3.local", req.URL.Host)
	assert.Equal(t, "/mock-bucket/out/m.json", req.URL.Path)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
}

func TestOpenSelectsWriter(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w, err := Open(context.Background(), "dir/out.json", settings.Settings{}, fsys)
	require.NoError(t, err)
	assert.IsType(t, &File{}, w)
	assert.Equal(t, "dir/out.json", w.Target())

	w, err = Open(context.Background(), "s3://bucket/path/out.json", settings.Settings{
		S3AccessKeyID: "AKIA", S3SecretAccessKey: "SECRET",
	}, fsys)
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/path/out.json", w.Target())

	for _, bad := range []string{"", "s3://bucket", "s3://bucket/dir/", "s3:///key"} {
		_, err := Open(context.Background(), bad, settings.Settings{}, fsys)
		assert.Error(t, err, bad)
	}
}
