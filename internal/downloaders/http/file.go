package riphttp

import (
	"context"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/ripfetch/internal/files"
	"github.com/tanq16/ripfetch/internal/utils"
)

// FileDownloader is the full variant: resumable byte ranges and extension
// inference for targets without one.
type FileDownloader struct {
	*Engine
}

func NewFileDownloader(client *utils.HTTPClient, opts utils.DownloadOptions, deps utils.Deps) *FileDownloader {
	return &FileDownloader{Engine: newEngine(client, opts, deps)}
}

func (d *FileDownloader) Download(ctx context.Context, task *utils.Task) utils.Result {
	st, done := d.prepare(task, task.Resume)
	if done != nil {
		return *done
	}
	st.resume = task.Resume
	st.sniff = true
	if st.resume {
		st.offset = files.ResumeOffset(st.target)
	}
	return d.loop(ctx, st)
}

// StreamDownloader always fetches the whole resource into a fresh working
// file; the caller fully determines the destination name.
type StreamDownloader struct {
	*Engine
}

func NewStreamDownloader(client *utils.HTTPClient, opts utils.DownloadOptions, deps utils.Deps) *StreamDownloader {
	return &StreamDownloader{Engine: newEngine(client, opts, deps)}
}

func (d *StreamDownloader) Download(ctx context.Context, task *utils.Task) utils.Result {
	st, done := d.prepare(task, false)
	if done != nil {
		return *done
	}
	if size, ok := d.headSize(ctx, task); ok {
		d.deps.Observer.TotalBytes(st.source, size)
	}
	st.headTotal = true
	return d.loop(ctx, st)
}

// SaveStream runs the write, validate and commit steps over a byte stream
// that the caller already opened.
func (d *StreamDownloader) SaveStream(ctx context.Context, task *utils.Task, r io.Reader, size int64) utils.Result {
	st, done := d.prepare(task, false)
	if done != nil {
		return *done
	}
	if size >= 0 {
		d.deps.Observer.TotalBytes(st.source, size)
	}
	working, err := d.writeWorking(ctx, st, r, false)
	if err != nil {
		if d.stopped(ctx) {
			return d.interrupted(st)
		}
		return d.fail(st, err)
	}
	return d.finish(st, working)
}

// headSize asks for the total size with a HEAD request. Any failure only
// means progress is reported without a total.
func (d *StreamDownloader) headSize(ctx context.Context, task *utils.Task) (int64, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, task.URL, nil)
	if err != nil {
		return 0, false
	}
	req.Header.Set("User-Agent", d.client.UserAgent())
	if task.Referrer != "" {
		req.Header.Set("Referer", task.Referrer)
	}
	if cookie := utils.CookieHeader(task.Cookies); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		log.Debug().Str("op", "http/stream").Err(err).Msg("HEAD request failed")
		return 0, false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 || resp.ContentLength < 0 {
		return 0, false
	}
	return resp.ContentLength, true
}
