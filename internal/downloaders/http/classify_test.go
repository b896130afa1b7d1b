package riphttp

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tanq16/ripfetch/internal/utils"
)

func TestClassify(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	header := func(kv ...string) http.Header {
		h := http.Header{}
		for i := 0; i+1 < len(kv); i += 2 {
			h.Set(kv[i], kv[i+1])
		}
		return h
	}
	imgur := []string{"imgur.com"}

	tests := []struct {
		name    string
		resp    Response
		policy  Policy
		kind    OutcomeKind
		wantErr error
		loc     string
		wait    time.Duration
	}{
		{name: "ok", resp: Response{URL: "https://a.test/x", StatusCode: 200, ContentLength: 10}, kind: Stream},
		{name: "unknown length", resp: Response{URL: "https://a.test/x", StatusCode: 200, ContentLength: -1}, kind: Stream},
		{name: "partial with resume", resp: Response{URL: "https://a.test/x", StatusCode: 206, ResumeOffset: 100}, kind: Stream},
		{name: "resume ignored by server", resp: Response{URL: "https://a.test/x", StatusCode: 200, ResumeOffset: 100}, kind: Fail, wantErr: utils.ErrResumeUnsupported},
		{name: "resume answered by 500", resp: Response{URL: "https://a.test/x", StatusCode: 500, ResumeOffset: 1}, kind: Retry},
		{name: "relative redirect", resp: Response{URL: "https://a.test/dir/x", StatusCode: 302, Header: header("Location", "../y")}, kind: Redirect, loc: "https://a.test/y"},
		{name: "redirect while resuming", resp: Response{URL: "https://a.test/x", StatusCode: 308, Header: header("Location", "https://b.test/x"), ResumeOffset: 5}, kind: Redirect, loc: "https://b.test/x"},
		{name: "redirect without location", resp: Response{URL: "https://a.test/x", StatusCode: 301, Header: header()}, kind: Fail, wantErr: utils.ErrBadRedirect},
		{name: "redirect to ftp", resp: Response{URL: "https://a.test/x", StatusCode: 302, Header: header("Location", "ftp://a.test/x")}, kind: Fail, wantErr: utils.ErrBadRedirect},
		{name: "429 retry-after", resp: Response{URL: "https://a.test/x", StatusCode: 429, Header: header("Retry-After", "12")}, policy: Policy{Now: now}, kind: RateLimited, wait: 12 * time.Second},
		{name: "429 exponential", resp: Response{URL: "https://a.test/x", StatusCode: 429, Header: header()}, policy: Policy{RateLimitAttempt: 3, Now: now}, kind: RateLimited, wait: 8 * time.Second},
		{name: "429 capped", resp: Response{URL: "https://a.test/x", StatusCode: 429, Header: header()}, policy: Policy{RateLimitAttempt: 20, Now: now}, kind: RateLimited, wait: utils.MaxBackoff},
		{name: "429 huge retry-after capped", resp: Response{URL: "https://a.test/x", StatusCode: 429, Header: header("Retry-After", "99999")}, policy: Policy{Now: now}, kind: RateLimited, wait: utils.MaxBackoff},
		{name: "404 fatal", resp: Response{URL: "https://a.test/x", StatusCode: 404}, kind: Fail},
		{name: "404 skipped", resp: Response{URL: "https://a.test/x", StatusCode: 404}, policy: Policy{SkipNotFound: true}, kind: Skip},
		{name: "410 skipped", resp: Response{URL: "https://a.test/x", StatusCode: 410}, policy: Policy{SkipNotFound: true}, kind: Skip},
		{name: "403 never skipped", resp: Response{URL: "https://a.test/x", StatusCode: 403}, policy: Policy{SkipNotFound: true}, kind: Fail},
		{name: "503 retried", resp: Response{URL: "https://a.test/x", StatusCode: 503}, kind: Retry},
		{name: "masked 404", resp: Response{URL: "https://i.imgur.com/abc.jpg", StatusCode: 200, ContentLength: 503}, policy: Policy{MaskHosts: imgur}, kind: Fail, wantErr: utils.ErrMaskedNotFound},
		{name: "503 bytes elsewhere", resp: Response{URL: "https://notimgur.com/abc.jpg", StatusCode: 200, ContentLength: 503}, policy: Policy{MaskHosts: imgur}, kind: Stream},
		{name: "504 bytes on mask host", resp: Response{URL: "https://imgur.com/abc.jpg", StatusCode: 200, ContentLength: 504}, policy: Policy{MaskHosts: imgur}, kind: Stream},
		{name: "informational", resp: Response{URL: "https://a.test/x", StatusCode: 100}, kind: Retry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Classify(tt.resp, tt.policy)
			assert.Equal(t, tt.kind, out.Kind, "got %s", out.Kind)
			if tt.wantErr != nil {
				assert.ErrorIs(t, out.Err, tt.wantErr)
			}
			if tt.kind == Fail || tt.kind == Skip || tt.kind == Retry {
				assert.Error(t, out.Err)
			}
			assert.Equal(t, tt.loc, out.Location)
			assert.Equal(t, tt.wait, out.Wait)
		})
	}
}

func TestClassify_StatusErrorCarriesCode(t *testing.T) {
	out := Classify(Response{URL: "https://a.test/x", StatusCode: 418}, Policy{})
	var se *utils.StatusError
	if assert.ErrorAs(t, out.Err, &se) {
		assert.Equal(t, 418, se.StatusCode)
		assert.Contains(t, se.Error(), "418")
	}
}
