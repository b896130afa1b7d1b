package s3

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	riphttp "github.com/tanq16/ripfetch/internal/downloaders/http"
	"github.com/tanq16/ripfetch/internal/utils"
)

// fakeS3 serves path-style HEAD and ranged GET requests for a fixed set of
// objects.
type fakeS3 struct {
	objects map[string][]byte
	hits    atomic.Int32
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	body, ok := f.objects[strings.TrimPrefix(r.URL.Path, "/")]
	if !ok {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		if r.Method != http.MethodHead {
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
		}
		return
	}
	w.Header().Set("ETag", `"etag"`)
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		return
	}
	start, end := 0, len(body)-1
	if rng := r.Header.Get("Range"); rng != "" {
		fmt.Sscanf(rng, "bytes=%d-%d", &start, &end)
		if end > len(body)-1 {
			end = len(body) - 1
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(body)))
		w.Header().Set("Content-Length", strconv.Itoa(end-start+1))
		w.WriteHeader(http.StatusPartialContent)
	}
	w.Write(body[start : end+1])
}

type totals struct {
	utils.NopObserver
	last atomic.Int64
}

func (t *totals) TotalBytes(_ string, n int64) { t.last.Store(n) }

func newTestDownloader(t *testing.T, fake *fakeS3, obs utils.Observer) *Downloader {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	client := s3.New(s3.Options{
		Region:                     "us-east-1",
		BaseEndpoint:               aws.String(srv.URL),
		UsePathStyle:               true,
		Credentials:                credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
	stream := riphttp.NewStreamDownloader(utils.NewHTTPClient(utils.HTTPClientConfig{}), utils.DownloadOptions{MinFileSize: 10}, utils.Deps{Observer: obs})
	return New(client, stream, obs)
}

func TestDownload_Object(t *testing.T) {
	content := bytes.Repeat([]byte("object-bytes:"), 1000)
	fake := &fakeS3{objects: map[string][]byte{"bucket/dir/data.csv": content}}
	obs := &totals{}
	d := newTestDownloader(t, fake, obs)
	d.PartSize = 4096
	dir := t.TempDir()

	res := d.Download(context.Background(), &utils.Task{URL: "s3://bucket/dir/data.csv", OutputPath: dir})

	require.Equal(t, utils.StatusCompleted, res.Status, "err: %v", res.Err)
	assert.Equal(t, filepath.Join(dir, "data.csv"), res.Path)
	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, int64(len(content)), obs.last.Load())
	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1)
}

func TestDownload_MissingObject(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	d := newTestDownloader(t, fake, nil)
	dir := t.TempDir()

	res := d.Download(context.Background(), &utils.Task{URL: "s3://bucket/missing.bin", OutputPath: filepath.Join(dir, "missing.bin")})

	assert.Equal(t, utils.StatusFailed, res.Status)
	assert.Error(t, res.Err)
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestDownload_ExistingTargetSkipsNetwork(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{"bucket/k": []byte("0123456789abc")}}
	d := newTestDownloader(t, fake, nil)
	target := filepath.Join(t.TempDir(), "k")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0644))

	res := d.Download(context.Background(), &utils.Task{URL: "s3://bucket/k", OutputPath: target})

	assert.Equal(t, utils.StatusExists, res.Status)
	assert.Equal(t, int32(0), fake.hits.Load())
}

func TestDownload_BadURL(t *testing.T) {
	d := newTestDownloader(t, &fakeS3{}, nil)
	res := d.Download(context.Background(), &utils.Task{URL: "s3:///nobucket", OutputPath: t.TempDir()})
	assert.Equal(t, utils.StatusFailed, res.Status)
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		in          string
		bucket, key string
		ok          bool
	}{
		{"s3://b/k.txt", "b", "k.txt", true},
		{"s3://b/deep/path/k", "b", "deep/path/k", true},
		{"s3://b", "", "", false},
		{"s3://b/", "", "", false},
		{"s3://b/folder/", "", "", false},
		{"s3:///k", "", "", false},
		{"https://b/k", "", "", false},
	}
	for _, tt := range tests {
		bucket, key, err := ParseURL(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.bucket, bucket)
		assert.Equal(t, tt.key, key)
	}
}

func TestSequentialWriterAt(t *testing.T) {
	var buf bytes.Buffer
	w := &sequentialWriterAt{w: &buf}

	n, err := w.WriteAt([]byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = w.WriteAt([]byte("hel"), 0)
	require.NoError(t, err, "rewritten prefix is dropped")
	assert.Equal(t, 3, n)

	n, err = w.WriteAt([]byte("lo world"), 3)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, "hello world", buf.String())

	_, err = w.WriteAt([]byte("!"), 20)
	assert.Error(t, err)
}

func TestPool_ClientPerProfile(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{
		"bucket/a.bin": bytes.Repeat([]byte("a"), 64),
		"bucket/b.bin": bytes.Repeat([]byte("b"), 64),
	}}
	template := newTestDownloader(t, fake, nil)
	pool := NewPool(ClientOptions{Profile: "default"}, template.stream, nil)
	var built []string
	pool.newClient = func(_ context.Context, opts ClientOptions) (*s3.Client, error) {
		built = append(built, opts.Profile)
		if opts.Profile == "broken" {
			return nil, fmt.Errorf("no such profile")
		}
		return template.client, nil
	}
	dir := t.TempDir()

	res := pool.Download(context.Background(), &utils.Task{URL: "s3://bucket/a.bin", OutputPath: dir})
	require.Equal(t, utils.StatusCompleted, res.Status, "err: %v", res.Err)
	res = pool.Download(context.Background(), &utils.Task{URL: "s3://bucket/b.bin", OutputPath: dir, Profile: "default"})
	require.Equal(t, utils.StatusCompleted, res.Status, "err: %v", res.Err)
	res = pool.Download(context.Background(), &utils.Task{URL: "s3://bucket/b.bin", OutputPath: filepath.Join(dir, "c.bin"), Profile: "broken"})
	assert.Equal(t, utils.StatusFailed, res.Status)

	assert.Equal(t, []string{"default", "broken"}, built)
}
