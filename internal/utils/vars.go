package utils

import (
	"errors"
	"time"
)

const DefaultBufferSize = 256 * 1024 // 256KB read chunk
const SniffSize = 512
const MaxBackoff = 10 * time.Minute
const ToolUserAgent = "ripfetch/1.0"

const (
	PartSuffix = ".part"
	TempSuffix = ".tmp"
)

var (
	ErrDuplicate         = errors.New("duplicate content")
	ErrResumeUnsupported = errors.New("server does not support resuming")
	ErrInterrupted       = errors.New("download interrupted")
	ErrExceededRetries   = errors.New("exceeded retry budget")
	ErrMaskedNotFound    = errors.New("not found (masked as 503-byte body)")
	ErrBadRedirect       = errors.New("malformed redirect target")
	ErrRateLimitBudget   = errors.New("rate limit backoff budget exhausted")
	ErrLimitReached      = errors.New("download limit reached")
)

// Local-only User-Agent list
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:135.0) Gecko/20100101 Firefox/135.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:135.0) Gecko/20100101 Firefox/135.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.3 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36 Edg/132.0.0.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:136.0) Gecko/20100101 Firefox/136.0",
}
