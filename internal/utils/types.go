package utils

import (
	"context"
	"time"
)

// Task is one (url, destination, metadata) tuple handed over by a task source.
type Task struct {
	Kind       string            `yaml:"type"`
	URL        string            `yaml:"link"`
	OutputPath string            `yaml:"op"`
	Referrer   string            `yaml:"referer"`
	Cookies    map[string]string `yaml:"cookies"`
	Resume     bool              `yaml:"resume"`
	Profile    string            `yaml:"profile"`
}

type Status int

const (
	StatusCompleted Status = iota
	StatusExists
	StatusSkipped
	StatusDuplicate
	StatusFailed
	StatusInterrupted
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusExists:
		return "exists"
	case StatusSkipped:
		return "skipped"
	case StatusDuplicate:
		return "duplicate"
	case StatusFailed:
		return "failed"
	case StatusInterrupted:
		return "interrupted"
	}
	return "unknown"
}

// Result is the terminal state of a task. Path is the committed file for
// StatusCompleted and the existing file for StatusExists.
type Result struct {
	URL    string
	Status Status
	Path   string
	Err    error
}

// Observer receives lifecycle events synchronously from the worker goroutine.
type Observer interface {
	Started(url string)
	TotalBytes(url string, n int64)
	BytesCompleted(url string, n int64)
	Exists(url, path string)
	Skipped(url, reason string)
	Completed(url, path string)
	Errored(url string, err error)
	Interrupted(url string)
	LimitReached()
}

// LimitTracker is the per-job successful download budget.
type LimitTracker interface {
	TryAcquire(url string) bool
	OnSuccess(url string) bool
	OnFailure(url string)
	ShouldNotifyLimitReached() bool
}

// DedupRegistry reports whether a completed file's content is new for the
// current job. It returns false for content seen before. UnregisterHash
// drops a registration whose file was never published.
type DedupRegistry interface {
	RegisterHash(path string) (bool, error)
	UnregisterHash(path string) error
}

// StopFunc is the cooperative cancellation hook; it must not block.
type StopFunc func() bool

// Deps are the collaborators shared by every task of one job.
type Deps struct {
	Observer Observer
	Tracker  LimitTracker
	Dedup    DedupRegistry
	Stop     StopFunc
}

type Downloader interface {
	Download(ctx context.Context, task *Task) Result
}

type HTTPClientConfig struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	KATimeout      time.Duration
	ProxyURL       string
	ProxyUsername  string
	ProxyPassword  string
	UserAgent      string
	BearerToken    string
	Headers        map[string]string
}

// DownloadOptions are the read-only knobs of the download state machine.
type DownloadOptions struct {
	Retries           int
	RetrySleep        time.Duration
	RateLimitRetries  int
	Overwrite         bool
	MinFileSize       int64
	SkipNotFound      bool
	NotFoundMaskHosts []string
	TestMode          bool
	TestModeMaxBytes  int64
}
