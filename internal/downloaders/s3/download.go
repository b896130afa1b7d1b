// Package s3 saves single S3 objects through the same validate and commit
// steps as HTTP downloads.
package s3

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	riphttp "github.com/tanq16/ripfetch/internal/downloaders/http"
	"github.com/tanq16/ripfetch/internal/utils"
)

type Downloader struct {
	client   *s3.Client
	stream   *riphttp.StreamDownloader
	observer utils.Observer
	PartSize int64
}

func New(client *s3.Client, stream *riphttp.StreamDownloader, observer utils.Observer) *Downloader {
	if observer == nil {
		observer = utils.NopObserver{}
	}
	return &Downloader{
		client:   client,
		stream:   stream,
		observer: observer,
		PartSize: manager.DefaultDownloadPartSize,
	}
}

func (d *Downloader) Download(ctx context.Context, task *utils.Task) utils.Result {
	bucket, key, err := ParseURL(task.URL)
	if err != nil {
		d.observer.Started(task.URL)
		d.observer.Errored(task.URL, err)
		return utils.Result{URL: task.URL, Status: utils.StatusFailed, Err: err}
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	obj := &objectReader{ctx: ctx, d: d, source: task.URL, bucket: bucket, key: key}
	defer obj.Close()
	log.Debug().Str("op", "s3/download").Msgf("Fetching s3://%s/%s", bucket, key)
	return d.stream.SaveStream(ctx, task, obj, -1)
}

// objectReader contacts S3 on the first Read, so a task that ends before
// streaming never touches the network.
type objectReader struct {
	ctx    context.Context
	d      *Downloader
	source string
	bucket string
	key    string

	once sync.Once
	pr   *io.PipeReader
	err  error
}

func (o *objectReader) Read(p []byte) (int, error) {
	o.once.Do(o.start)
	if o.err != nil {
		return 0, o.err
	}
	return o.pr.Read(p)
}

func (o *objectReader) start() {
	head, err := o.d.client.HeadObject(o.ctx, &s3.HeadObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
	})
	if err != nil {
		o.err = fmt.Errorf("error getting S3 object info: %w", err)
		return
	}
	if head.ContentLength != nil {
		o.d.observer.TotalBytes(o.source, *head.ContentLength)
	}

	pr, pw := io.Pipe()
	o.pr = pr
	dl := manager.NewDownloader(o.d.client, func(m *manager.Downloader) {
		m.Concurrency = 1
		m.PartSize = o.d.PartSize
	})
	go func() {
		_, err := dl.Download(o.ctx, &sequentialWriterAt{w: pw}, &s3.GetObjectInput{
			Bucket: aws.String(o.bucket),
			Key:    aws.String(o.key),
		})
		pw.CloseWithError(err)
	}()
}

// Close stops a transfer that is still running.
func (o *objectReader) Close() error {
	if o.pr != nil {
		return o.pr.CloseWithError(utils.ErrInterrupted)
	}
	return nil
}

// sequentialWriterAt feeds in-order part writes to a stream. Bytes rewritten
// by a part retry are dropped; a gap is an error.
type sequentialWriterAt struct {
	mu  sync.Mutex
	w   io.Writer
	off int64
}

func (s *sequentialWriterAt) WriteAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if off > s.off {
		return 0, fmt.Errorf("out of order write at offset %d, expected %d", off, s.off)
	}
	end := off + int64(len(p))
	if end <= s.off {
		return len(p), nil
	}
	n, err := s.w.Write(p[s.off-off:])
	s.off += int64(n)
	if err != nil {
		return int(s.off - off), err
	}
	return len(p), nil
}
