// Package riphttp downloads single files over HTTP(S) into validated,
// atomically committed targets.
package riphttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/ripfetch/internal/fetch"
	"github.com/tanq16/ripfetch/internal/files"
	"github.com/tanq16/ripfetch/internal/utils"
)

var (
	errStopped      = errors.New("stop requested")
	errTestModeSkip = errors.New("body above the test mode size limit")
	errExists       = errors.New("inferred target already exists")
)

// localError is a failure of the local filesystem; retrying the request
// cannot fix it.
type localError struct {
	err error
}

func (e *localError) Error() string { return e.err.Error() }
func (e *localError) Unwrap() error { return e.err }

// Engine drives one task through connect, classify, stream, validate and
// commit. Sleep, Now and Strategy may be replaced before the first Download.
type Engine struct {
	client   *utils.HTTPClient
	opts     utils.DownloadOptions
	deps     utils.Deps
	Strategy files.PathStrategy
	Sleep    fetch.Sleeper
	Now      func() time.Time
}

func newEngine(client *utils.HTTPClient, opts utils.DownloadOptions, deps utils.Deps) *Engine {
	if deps.Observer == nil {
		deps.Observer = utils.NopObserver{}
	}
	return &Engine{
		client:   client.NoRedirects(),
		opts:     opts,
		deps:     deps,
		Strategy: files.StrategyFor(files.PlatformLimits()),
		Sleep:    fetch.SleepContext,
		Now:      time.Now,
	}
}

// state is the mutable bookkeeping of one task.
type state struct {
	task    *utils.Task
	source  string
	url     string
	target  string
	working string
	offset  int64
	resume  bool
	sniff   bool
	// adopted holds the target whose partial file became the part file.
	adopted string
	// headTotal is set when the total size came from a HEAD request.
	headTotal bool
}

func (e *Engine) stopped(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return e.deps.Stop != nil && e.deps.Stop()
}

// prepare resolves the target, reports an existing file, and reserves a slot
// in the download limit. With resume set, a file already at the target is
// continued instead of reported. A nil state means the task already
// terminated.
func (e *Engine) prepare(task *utils.Task, resume bool) (*state, *utils.Result) {
	obs := e.deps.Observer
	obs.Started(task.URL)
	st := &state{task: task, source: task.URL, url: task.URL}

	target, err := e.targetFor(task)
	if err != nil {
		r := e.fail(st, fmt.Errorf("building destination path: %w", err))
		return nil, &r
	}
	st.target = target

	partial := resume && files.Exists(target) && !files.Exists(files.PartPath(target))
	if files.Exists(target) && !partial && !e.opts.Overwrite {
		log.Info().Str("op", "http/prepare").Str("path", target).Msg("File already exists, skipping")
		obs.Exists(task.URL, target)
		return nil, &utils.Result{URL: task.URL, Status: utils.StatusExists, Path: target}
	}

	if e.deps.Tracker != nil && !e.deps.Tracker.TryAcquire(task.URL) {
		r := e.skip(st, utils.ErrLimitReached)
		return nil, &r
	}

	if partial {
		moved, err := files.AdoptPartial(target)
		if err != nil {
			r := e.fail(st, fmt.Errorf("preparing partial file for resume: %w", err))
			return nil, &r
		}
		if moved {
			log.Debug().Str("op", "http/prepare").Str("path", target).Msg("Resuming partial file at target")
			st.adopted = target
		}
	}
	return st, nil
}

func (e *Engine) targetFor(task *utils.Task) (string, error) {
	out := task.OutputPath
	if out == "" || strings.HasSuffix(out, "/") || strings.HasSuffix(out, string(os.PathSeparator)) {
		out = filepath.Join(out, NameFromURL(task.URL))
	} else if info, err := os.Stat(out); err == nil && info.IsDir() {
		out = filepath.Join(out, NameFromURL(task.URL))
	}
	target, err := e.Strategy.Fit(files.SanitizePath(out), files.WorkingSuffixLen)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", err
	}
	return target, nil
}

// NameFromURL is the last path segment of rawURL, or "download".
func NameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "download"
	}
	name := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if name == "/" || name == "." {
		name = ""
	}
	return files.SanitizeName(name)
}

// loop runs CONNECT and CLASSIFY until the task streams successfully or
// terminates.
func (e *Engine) loop(ctx context.Context, st *state) utils.Result {
	var retries, redirects, rateLimits int
	for {
		if e.stopped(ctx) {
			return e.interrupted(st)
		}
		req, err := e.newRequest(ctx, st)
		if err != nil {
			return e.fail(st, fmt.Errorf("building request: %w", err))
		}

		var out Outcome
		resp, err := e.client.Do(req)
		if err != nil {
			if e.stopped(ctx) {
				return e.interrupted(st)
			}
			out = Outcome{Kind: Retry, Err: err}
		} else {
			out = Classify(Response{
				URL:           st.url,
				StatusCode:    resp.StatusCode,
				Header:        resp.Header,
				ContentLength: resp.ContentLength,
				ResumeOffset:  st.offset,
			}, Policy{
				SkipNotFound:     e.opts.SkipNotFound,
				MaskHosts:        e.opts.NotFoundMaskHosts,
				RateLimitAttempt: rateLimits,
				Now:              e.Now(),
			})
			if out.Kind != Stream {
				drain(resp)
			}
		}

		switch out.Kind {
		case Redirect:
			redirects++
			if redirects > 1 {
				retries++
				if retries > e.opts.Retries {
					return e.fail(st, fmt.Errorf("%w: %d redirects from %s", utils.ErrExceededRetries, redirects, st.source))
				}
			}
			log.Debug().Str("op", "http/redirect").Str("from", st.url).Str("to", out.Location).Int("hop", redirects).Msg("Following redirect")
			st.url = out.Location
			continue

		case RateLimited:
			if rateLimits >= e.opts.RateLimitRetries {
				return e.fail(st, utils.ErrRateLimitBudget)
			}
			rateLimits++
			log.Warn().Str("op", "http/rate-limit").Str("url", st.url).Dur("wait", out.Wait).Int("attempt", rateLimits).Msg("Rate limited (429), backing off")
			if err := e.Sleep(ctx, out.Wait); err != nil {
				return e.interrupted(st)
			}
			continue

		case Skip:
			return e.skip(st, out.Err)

		case Fail:
			return e.fail(st, out.Err)

		case Retry:
			retries++
			if retries > e.opts.Retries {
				return e.fail(st, fmt.Errorf("%w: %v", utils.ErrExceededRetries, out.Err))
			}
			log.Warn().Str("op", "http/retry").Err(out.Err).Str("url", st.url).Msgf("Attempt %d/%d failed, retrying", retries, e.opts.Retries+1)
			if err := e.Sleep(ctx, e.opts.RetrySleep); err != nil {
				return e.interrupted(st)
			}
			continue
		}

		working, err := e.stream(ctx, st, resp)
		switch {
		case err == nil:
			return e.finish(st, working)
		case errors.Is(err, errStopped):
			return e.interrupted(st)
		case errors.Is(err, errTestModeSkip):
			return e.skip(st, err)
		case errors.Is(err, errExists):
			e.release(st)
			log.Info().Str("op", "http/stream").Str("path", st.target).Msg("File already exists, skipping")
			e.deps.Observer.Exists(st.source, st.target)
			return utils.Result{URL: st.source, Status: utils.StatusExists, Path: st.target}
		}
		var local *localError
		if errors.As(err, &local) {
			return e.fail(st, local.err)
		}
		retries++
		if retries > e.opts.Retries {
			return e.fail(st, fmt.Errorf("%w: %v", utils.ErrExceededRetries, err))
		}
		log.Warn().Str("op", "http/retry").Err(err).Str("url", st.url).Msgf("Stream failed on attempt %d/%d, retrying", retries, e.opts.Retries+1)
		if err := e.Sleep(ctx, e.opts.RetrySleep); err != nil {
			return e.interrupted(st)
		}
		if st.resume {
			st.offset = files.ResumeOffset(st.target)
		}
	}
}

func (e *Engine) newRequest(ctx context.Context, st *state) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, st.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", e.client.UserAgent())
	if st.task.Referrer != "" {
		req.Header.Set("Referer", st.task.Referrer)
	}
	if cookie := utils.CookieHeader(st.task.Cookies); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	if st.offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", st.offset))
		log.Debug().Str("op", "http/connect").Msgf("Resuming download from offset %d", st.offset)
	}
	return req, nil
}

// finish validates the working file and publishes it at the target.
func (e *Engine) finish(st *state, working string) utils.Result {
	info, err := os.Stat(working)
	if err != nil {
		return e.fail(st, err)
	}
	if size := info.Size(); e.opts.MinFileSize > 0 && size < e.opts.MinFileSize {
		os.Remove(working)
		return e.fail(st, &utils.TooSmallError{Size: size, Min: e.opts.MinFileSize})
	}
	if e.deps.Dedup != nil {
		fresh, err := e.deps.Dedup.RegisterHash(working)
		if err != nil {
			os.Remove(working)
			return e.fail(st, fmt.Errorf("checking for duplicate content: %w", err))
		}
		if !fresh {
			os.Remove(working)
			return e.duplicate(st)
		}
	}
	final, err := files.Commit(working, st.target, e.Strategy)
	if err != nil {
		if e.deps.Dedup != nil {
			if uerr := e.deps.Dedup.UnregisterHash(working); uerr != nil {
				log.Warn().Str("op", "http/commit").Err(uerr).Msg("Could not drop hash of unpublished file")
			}
		}
		os.Remove(working)
		return e.fail(st, fmt.Errorf("committing %s: %w", st.target, err))
	}

	if e.deps.Tracker != nil && e.deps.Tracker.OnSuccess(st.source) && e.deps.Tracker.ShouldNotifyLimitReached() {
		log.Info().Str("op", "http/commit").Msg("Download limit reached")
		e.deps.Observer.LimitReached()
	}
	log.Info().Str("op", "http/commit").Str("path", final).Str("size", utils.FormatBytes(info.Size())).Msg("Download completed")
	e.deps.Observer.Completed(st.source, final)
	return utils.Result{URL: st.source, Status: utils.StatusCompleted, Path: final}
}

// release gives back the limit reservation of a task that did not complete
// and returns an adopted partial file to its target.
func (e *Engine) release(st *state) {
	if e.deps.Tracker != nil {
		e.deps.Tracker.OnFailure(st.source)
	}
	if st.adopted != "" {
		if err := files.RestorePartial(st.adopted); err != nil {
			log.Warn().Str("op", "http/download").Err(err).Str("path", st.adopted).Msg("Could not restore partial file")
		}
	}
}

func (e *Engine) fail(st *state, err error) utils.Result {
	e.release(st)
	log.Error().Str("op", "http/download").Err(err).Str("url", st.source).Msg("Download failed")
	e.deps.Observer.Errored(st.source, err)
	return utils.Result{URL: st.source, Status: utils.StatusFailed, Path: st.target, Err: err}
}

func (e *Engine) skip(st *state, reason error) utils.Result {
	e.release(st)
	log.Info().Str("op", "http/download").Str("url", st.source).Str("reason", reason.Error()).Msg("Download skipped")
	e.deps.Observer.Skipped(st.source, reason.Error())
	return utils.Result{URL: st.source, Status: utils.StatusSkipped, Path: st.target, Err: reason}
}

func (e *Engine) duplicate(st *state) utils.Result {
	e.release(st)
	log.Info().Str("op", "http/validate").Str("url", st.source).Msg("Duplicate content deleted")
	e.deps.Observer.Errored(st.source, utils.ErrDuplicate)
	return utils.Result{URL: st.source, Status: utils.StatusDuplicate, Path: st.target, Err: utils.ErrDuplicate}
}

// interrupted drops a temporary working file. A resume part file stays so a
// later run can continue it.
func (e *Engine) interrupted(st *state) utils.Result {
	e.release(st)
	if st.working != "" && !st.resume {
		os.Remove(st.working)
	}
	log.Warn().Str("op", "http/download").Str("url", st.source).Msg("Download interrupted")
	e.deps.Observer.Interrupted(st.source)
	return utils.Result{URL: st.source, Status: utils.StatusInterrupted, Path: st.target, Err: utils.ErrInterrupted}
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()
}
