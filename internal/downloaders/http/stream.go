package riphttp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/ripfetch/internal/files"
	"github.com/tanq16/ripfetch/internal/utils"
)

// stream writes the body of a classified response to the working file and
// returns its path. The response body is always closed.
func (e *Engine) stream(ctx context.Context, st *state, resp *http.Response) (string, error) {
	defer resp.Body.Close()
	if e.opts.TestMode && e.opts.TestModeMaxBytes > 0 && resp.ContentLength > e.opts.TestModeMaxBytes {
		log.Debug().Str("op", "http/stream").Int64("size", resp.ContentLength).Msg("Test mode, not reading large body")
		return "", errTestModeSkip
	}

	appendMode := st.offset > 0 && resp.StatusCode == http.StatusPartialContent
	if !appendMode {
		st.offset = 0
	}
	if !st.headTotal && resp.ContentLength >= 0 {
		e.deps.Observer.TotalBytes(st.source, st.offset+resp.ContentLength)
	}

	body := bufio.NewReaderSize(resp.Body, utils.DefaultBufferSize)
	if st.sniff && st.offset == 0 && !files.HasKnownExtension(st.target) {
		leading, _ := body.Peek(utils.SniffSize)
		if ext, ok := files.InferExtension(http.DetectContentType(leading), leading); ok {
			log.Debug().Str("op", "http/stream").Str("ext", ext).Msg("Inferred extension from content")
			st.target += ext
			if files.Exists(st.target) && !e.opts.Overwrite {
				return "", errExists
			}
		}
	}

	return e.writeWorking(ctx, st, body, appendMode)
}

// writeWorking opens the working file for st.target and copies r into it. A
// temporary working file is removed on any error.
func (e *Engine) writeWorking(ctx context.Context, st *state, r io.Reader, appendMode bool) (string, error) {
	w, err := files.OpenWorking(st.target, st.resume, appendMode, e.Strategy)
	if err != nil {
		return "", &localError{fmt.Errorf("opening working file: %w", err)}
	}
	st.target = w.Target
	st.working = w.Path

	err = e.copyChunks(ctx, st, w, r)
	if cerr := w.Close(); err == nil && cerr != nil {
		err = &localError{cerr}
	}
	if err != nil {
		if !st.resume {
			os.Remove(w.Path)
		}
		return "", err
	}
	return w.Path, nil
}

// copyChunks polls the stop hook before every chunk.
func (e *Engine) copyChunks(ctx context.Context, st *state, w io.Writer, r io.Reader) error {
	buffer := make([]byte, utils.DefaultBufferSize)
	done := st.offset
	for {
		if e.stopped(ctx) {
			return errStopped
		}
		n, readErr := r.Read(buffer)
		if n > 0 {
			if _, err := w.Write(buffer[:n]); err != nil {
				return &localError{fmt.Errorf("writing working file: %w", err)}
			}
			done += int64(n)
			e.deps.Observer.BytesCompleted(st.source, done)
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			if e.stopped(ctx) {
				return errStopped
			}
			return fmt.Errorf("reading response body: %w", readErr)
		}
	}
}
