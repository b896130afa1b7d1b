// Package hostgate bounds how many tasks run at once against one remote host.
package hostgate

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const DefaultMaxPerHost = 10

// Registry holds one counting permit pool per lower-cased hostname. Pools are
// created lazily by the first task for a host. A Registry belongs to a single
// job.
type Registry struct {
	maxPerHost int64
	mu         sync.RWMutex
	permits    map[string]*semaphore.Weighted
}

func NewRegistry(maxPerHost int) *Registry {
	if maxPerHost <= 0 {
		maxPerHost = DefaultMaxPerHost
	}
	return &Registry{
		maxPerHost: int64(maxPerHost),
		permits:    make(map[string]*semaphore.Weighted),
	}
}

// HostOf returns the lower-cased hostname of rawURL, or "" when none resolves.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func (r *Registry) permitFor(host string) *semaphore.Weighted {
	r.mu.RLock()
	if sem, ok := r.permits[host]; ok {
		r.mu.RUnlock()
		return sem
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if sem, ok := r.permits[host]; ok {
		return sem
	}
	sem := semaphore.NewWeighted(r.maxPerHost)
	r.permits[host] = sem
	return sem
}

// Run blocks until a permit for rawURL's host is free, runs task, and releases
// the permit however task returns. URLs without a host run unthrottled. A
// non-nil error means ctx ended while waiting and task never ran.
func (r *Registry) Run(ctx context.Context, rawURL string, task func(context.Context)) error {
	host := HostOf(rawURL)
	if host == "" {
		task(ctx)
		return nil
	}
	sem := r.permitFor(host)
	if err := sem.Acquire(ctx, 1); err != nil {
		log.Debug().Str("op", "hostgate").Str("host", host).Err(err).Msg("Aborted while waiting for host permit")
		return err
	}
	defer sem.Release(1)
	task(ctx)
	return nil
}

// Wrap binds Run to a task so it can be handed to a goroutine; onAbort
// receives the error when the permit wait is abandoned.
func (r *Registry) Wrap(ctx context.Context, rawURL string, task func(context.Context), onAbort func(error)) func() {
	return func() {
		if err := r.Run(ctx, rawURL, task); err != nil && onAbort != nil {
			onAbort(err)
		}
	}
}

func (r *Registry) Hosts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.permits)
}
