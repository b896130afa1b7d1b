package riphttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/tanq16/ripfetch/internal/fetch"
	"github.com/tanq16/ripfetch/internal/hostgate"
	"github.com/tanq16/ripfetch/internal/utils"
)

// maskedNotFoundSize is the body length one image host serves instead of a
// 404 for removed content.
const maskedNotFoundSize = 503

// OutcomeKind is the next step of the download loop after a response.
type OutcomeKind int

const (
	Stream OutcomeKind = iota
	Retry
	Fail
	Redirect
	RateLimited
	Skip
)

func (k OutcomeKind) String() string {
	switch k {
	case Stream:
		return "stream"
	case Retry:
		return "retry"
	case Fail:
		return "fail"
	case Redirect:
		return "redirect"
	case RateLimited:
		return "rate-limited"
	case Skip:
		return "skip"
	}
	return "unknown"
}

// Outcome is the decision taken on one response. Location is set for
// Redirect, Wait for RateLimited, Err for Retry, Fail and Skip.
type Outcome struct {
	Kind     OutcomeKind
	Err      error
	Location string
	Wait     time.Duration
}

// Response is the part of an HTTP response the classifier looks at.
type Response struct {
	URL           string
	StatusCode    int
	Header        http.Header
	ContentLength int64
	ResumeOffset  int64
}

// Policy holds the task settings and retry state that steer classification.
type Policy struct {
	SkipNotFound     bool
	MaskHosts        []string
	RateLimitAttempt int
	Now              time.Time
}

// Classify maps a response to the next state of the download.
func Classify(r Response, p Policy) Outcome {
	code := r.StatusCode
	switch {
	case code >= 300 && code < 400 && code != http.StatusNotModified:
		next, err := fetch.ResolveLocation(r.URL, r.Header.Get("Location"))
		if err != nil {
			return Outcome{Kind: Fail, Err: err}
		}
		return Outcome{Kind: Redirect, Location: next}

	case code == http.StatusTooManyRequests:
		wait, ok := fetch.ParseRetryAfter(r.Header, p.Now)
		if !ok {
			wait = fetch.Backoff(time.Second, p.RateLimitAttempt, 0)
		}
		if wait > utils.MaxBackoff {
			wait = utils.MaxBackoff
		}
		return Outcome{Kind: RateLimited, Wait: wait}

	case (code == http.StatusNotFound || code == http.StatusGone) && p.SkipNotFound:
		return Outcome{Kind: Skip, Err: &utils.StatusError{URL: r.URL, StatusCode: code}}

	case code >= 400 && code < 500:
		return Outcome{Kind: Fail, Err: &utils.StatusError{URL: r.URL, StatusCode: code}}

	case code >= 500:
		return Outcome{Kind: Retry, Err: &utils.StatusError{URL: r.URL, StatusCode: code}}

	case code >= 200 && code < 300:
		if r.ResumeOffset > 0 && code != http.StatusPartialContent {
			return Outcome{Kind: Fail, Err: utils.ErrResumeUnsupported}
		}
		if r.ContentLength == maskedNotFoundSize && isMaskHost(r.URL, p.MaskHosts) {
			return Outcome{Kind: Fail, Err: utils.ErrMaskedNotFound}
		}
		return Outcome{Kind: Stream}
	}
	return Outcome{Kind: Retry, Err: &utils.StatusError{URL: r.URL, StatusCode: code}}
}

func isMaskHost(rawURL string, hosts []string) bool {
	host := hostgate.HostOf(rawURL)
	if host == "" {
		return false
	}
	for _, h := range hosts {
		h = strings.ToLower(h)
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
