// Package scheduler runs the tasks of one job, each on its own goroutine
// behind the job's per-host gate.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tanq16/ripfetch/internal/hostgate"
	"github.com/tanq16/ripfetch/internal/limits"
	"github.com/tanq16/ripfetch/internal/utils"
)

const (
	KindHTTP   = "http"
	KindStream = "stream"
	KindS3     = "s3"
)

type Options struct {
	MaxPerDomain int
	MaxDownloads int
	Dedup        utils.DedupRegistry
	Observer     utils.Observer
	Stop         utils.StopFunc
}

// Job is one rip: a download limit, a host gate and a set of downloaders
// shared by every task submitted to it.
type Job struct {
	ID string

	tracker     *limits.Tracker
	gate        *hostgate.Registry
	deps        utils.Deps
	downloaders map[string]utils.Downloader
	group       errgroup.Group
	start       time.Time

	mu      sync.Mutex
	results []utils.Result
}

func New(opts Options) *Job {
	if opts.Observer == nil {
		opts.Observer = utils.NopObserver{}
	}
	tracker := limits.NewTracker(opts.MaxDownloads)
	return &Job{
		ID:      uuid.New().String(),
		tracker: tracker,
		gate:    hostgate.NewRegistry(opts.MaxPerDomain),
		deps: utils.Deps{
			Observer: opts.Observer,
			Tracker:  tracker,
			Dedup:    opts.Dedup,
			Stop:     opts.Stop,
		},
		downloaders: make(map[string]utils.Downloader),
		start:       time.Now(),
	}
}

// Deps are the collaborators downloaders of this job must be built with.
func (j *Job) Deps() utils.Deps {
	return j.deps
}

func (j *Job) Tracker() *limits.Tracker {
	return j.tracker
}

// Register binds a downloader to a task kind. It must not be called once
// tasks are submitted.
func (j *Job) Register(kind string, d utils.Downloader) {
	j.downloaders[kind] = d
}

// KindOf is the task's explicit kind, or one derived from its URL scheme.
func KindOf(task *utils.Task) string {
	if task.Kind != "" {
		return strings.ToLower(task.Kind)
	}
	if strings.HasPrefix(task.URL, "s3://") {
		return KindS3
	}
	return KindHTTP
}

// Submit starts task without waiting for a host permit. Every task ends in
// exactly one recorded result, including unknown kinds, permit waits
// abandoned because ctx ended, and panics.
func (j *Job) Submit(ctx context.Context, task *utils.Task) {
	obs := j.deps.Observer
	kind := KindOf(task)
	d, ok := j.downloaders[kind]
	if !ok {
		err := fmt.Errorf("unknown task type %q", kind)
		obs.Started(task.URL)
		obs.Errored(task.URL, err)
		j.record(utils.Result{URL: task.URL, Status: utils.StatusFailed, Err: err})
		return
	}

	run := j.gate.Wrap(ctx, task.URL, func(ctx context.Context) {
		j.record(d.Download(ctx, task))
	}, func(err error) {
		log.Debug().Str("op", "scheduler").Str("url", task.URL).Err(err).Msg("Task abandoned before start")
		obs.Interrupted(task.URL)
		j.record(utils.Result{URL: task.URL, Status: utils.StatusInterrupted, Err: err})
	})

	j.group.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic in %s task: %v", kind, r)
				log.Error().Str("op", "scheduler").Str("url", task.URL).Err(err).Msg("Recovered task panic")
				j.tracker.OnFailure(task.URL)
				obs.Errored(task.URL, err)
				j.record(utils.Result{URL: task.URL, Status: utils.StatusFailed, Err: err})
			}
		}()
		run()
		return nil
	})
}

func (j *Job) record(r utils.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results = append(j.results, r)
}

// Wait blocks until every submitted task has finished.
func (j *Job) Wait() Summary {
	_ = j.group.Wait()
	j.mu.Lock()
	defer j.mu.Unlock()
	s := Summary{
		JobID:    j.ID,
		Counts:   make(map[utils.Status]int),
		Results:  append([]utils.Result(nil), j.results...),
		Duration: time.Since(j.start),
		Hosts:    j.gate.Hosts(),
	}
	for _, r := range j.results {
		s.Counts[r.Status]++
	}
	log.Info().Str("op", "scheduler").Str("job", j.ID).Int("tasks", len(j.results)).Dur("took", s.Duration).Msg("Job finished")
	return s
}

type Summary struct {
	JobID    string
	Counts   map[utils.Status]int
	Results  []utils.Result
	Duration time.Duration
	Hosts    int
}

// Failed counts tasks that ended in an error, duplicates included.
func (s Summary) Failed() int {
	return s.Counts[utils.StatusFailed] + s.Counts[utils.StatusDuplicate]
}
