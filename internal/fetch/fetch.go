// Package fetch executes small GET requests (pages, lists, manifests) with
// rate-limit aware retries. File downloads go through the downloaders instead.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/ripfetch/internal/utils"
)

// FinalAttemptWait is the flat wait before the single extra attempt granted
// once the 429 budget is spent.
const FinalAttemptWait = 10 * time.Minute

const maxRedirectHops = 20

var ErrTooManyRedirects = errors.New("too many redirects")

type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s failed with HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s failed: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Client struct {
	http       *utils.HTTPClient
	noRedirect *utils.HTTPClient
	// Timer replaces the wall clock between attempts when set.
	Timer     retry.Timer
	Jitter    func() time.Duration
	Now       func() time.Time
	FinalWait time.Duration
}

func NewClient(c *utils.HTTPClient) *Client {
	return &Client{
		http:       c,
		noRedirect: c.NoRedirects(),
		Jitter:     Jitter,
		Now:        time.Now,
		FinalWait:  FinalAttemptWait,
	}
}

// FetchWithRetry GETs rawURL and returns the body. Redirects are followed by
// the transport.
func (c *Client) FetchWithRetry(ctx context.Context, rawURL string, maxRetries int, baseDelay time.Duration, userAgent string, headers map[string]string) ([]byte, error) {
	return c.fetch(ctx, c.http, rawURL, maxRetries, baseDelay, userAgent, headers, false)
}

// FetchFollowingRedirects chases 301/302/303/307/308 itself. Redirect hops do
// not consume the retry budget.
func (c *Client) FetchFollowingRedirects(ctx context.Context, rawURL string, maxRetries int, baseDelay time.Duration, userAgent string, headers map[string]string) ([]byte, error) {
	return c.fetch(ctx, c.noRedirect, rawURL, maxRetries, baseDelay, userAgent, headers, true)
}

// attemptError is a failed attempt that may be repeated. wait holds the
// server's Retry-After when it sent one.
type attemptError struct {
	err         error
	rateLimited bool
	wait        time.Duration
	hasWait     bool
}

func (e *attemptError) Error() string { return e.err.Error() }

func (e *attemptError) Unwrap() error { return e.err }

func isAttemptError(err error) bool {
	var ae *attemptError
	return errors.As(err, &ae)
}

// fetch runs up to maxRetries+1 attempts, plus one final attempt after
// FinalWait when only 429s used up the budget.
func (c *Client) fetch(ctx context.Context, client *utils.HTTPClient, rawURL string, maxRetries int, baseDelay time.Duration, userAgent string, headers map[string]string, chase bool) ([]byte, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	current := rawURL
	calls := 0

	attempt := func() ([]byte, error) {
		n := calls
		calls++
		body, last, err := c.once(ctx, client, current, userAgent, headers, chase)
		current = last
		var ae *attemptError
		if err == nil || !errors.As(err, &ae) {
			return body, err
		}
		switch {
		case ae.rateLimited && n > maxRetries:
			return nil, &FetchError{URL: current, StatusCode: http.StatusTooManyRequests, Err: utils.ErrRateLimitBudget}
		case !ae.rateLimited && n >= maxRetries:
			return nil, &FetchError{URL: current, Err: fmt.Errorf("%w: %v", utils.ErrExceededRetries, ae.err)}
		}
		return nil, err
	}

	delay := func(n uint, err error, _ *retry.Config) time.Duration {
		var ae *attemptError
		if errors.As(err, &ae) {
			switch {
			case ae.rateLimited && int(n) >= maxRetries:
				return c.FinalWait
			case ae.hasWait:
				return ae.wait
			}
		}
		return Backoff(baseDelay, int(n), c.Jitter())
	}

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(maxRetries) + 2),
		retry.LastErrorOnly(true),
		retry.RetryIf(isAttemptError),
		retry.DelayType(delay),
		retry.OnRetry(func(n uint, err error) {
			var ae *attemptError
			if !errors.As(err, &ae) {
				return
			}
			switch {
			case ae.rateLimited && int(n) >= maxRetries:
				log.Warn().Str("op", "fetch/retry").Str("url", current).Dur("wait", c.FinalWait).Msg("Rate limited with no retries left, waiting for final attempt")
			case ae.rateLimited:
				log.Warn().Str("op", "fetch/retry").Str("url", current).Uint("attempt", n+1).Msg("Rate limited (429), backing off")
			default:
				log.Warn().Str("op", "fetch/retry").Err(ae.err).Str("url", current).Uint("attempt", n+1).Msg("Request failed, retrying")
			}
		}),
	}
	if c.Timer != nil {
		opts = append(opts, retry.WithTimer(c.Timer))
	}

	body, err := retry.DoWithData(attempt, opts...)
	if err == nil {
		return body, nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return nil, err
	}
	return nil, &FetchError{URL: current, Err: err}
}

// once makes a single attempt: one GET and, when chase is set, the redirect
// hops behind it. It also returns the URL the attempt ended on.
func (c *Client) once(ctx context.Context, client *utils.HTTPClient, current, userAgent string, headers map[string]string, chase bool) ([]byte, string, error) {
	hops := 0
	for {
		resp, err := c.do(ctx, client, current, userAgent, headers)
		if err != nil {
			if ctx.Err() != nil {
				return nil, current, &FetchError{URL: current, Err: ctx.Err()}
			}
			return nil, current, &attemptError{err: err}
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			drain(resp)
			wait, ok := ParseRetryAfter(resp.Header, c.Now())
			return nil, current, &attemptError{
				err:         &FetchError{URL: current, StatusCode: resp.StatusCode},
				rateLimited: true,
				wait:        wait,
				hasWait:     ok,
			}

		case chase && isRedirect(resp.StatusCode):
			drain(resp)
			next, err := ResolveLocation(current, resp.Header.Get("Location"))
			if err != nil {
				return nil, current, &FetchError{URL: current, StatusCode: resp.StatusCode, Err: err}
			}
			hops++
			if hops > maxRedirectHops {
				return nil, current, &FetchError{URL: current, StatusCode: resp.StatusCode, Err: ErrTooManyRedirects}
			}
			log.Debug().Str("op", "fetch/redirect").Str("from", current).Str("to", next).Msg("Following redirect")
			current = next
			continue

		case resp.StatusCode >= 400:
			drain(resp)
			return nil, current, &FetchError{URL: current, StatusCode: resp.StatusCode}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, current, &FetchError{URL: current, Err: err}
		}
		return body, current, nil
	}
}

func (c *Client) do(ctx context.Context, client *utils.HTTPClient, rawURL, userAgent string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return client.Do(req)
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// ResolveLocation resolves a Location header against the request URL.
func ResolveLocation(base, location string) (string, error) {
	if location == "" {
		return "", utils.ErrBadRedirect
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrBadRedirect, err)
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrBadRedirect, err)
	}
	next := b.ResolveReference(ref)
	if next.Scheme != "http" && next.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", utils.ErrBadRedirect, next.Scheme)
	}
	return next.String(), nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()
}
