// Package metrics exposes download lifecycle events as Prometheus series.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Observer counts lifecycle events on its own registry, so two jobs in one
// process never share series.
type Observer struct {
	Registry *prometheus.Registry

	started      prometheus.Counter
	finished     *prometheus.CounterVec
	bytes        prometheus.Counter
	limitReached prometheus.Counter

	mu   sync.Mutex
	seen map[string]int64
}

func NewObserver() *Observer {
	o := &Observer{
		Registry: prometheus.NewRegistry(),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ripfetch_downloads_started_total",
			Help: "Total number of download tasks started",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ripfetch_downloads_finished_total",
			Help: "Total number of download tasks by terminal status",
		}, []string{"status"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ripfetch_download_bytes_total",
			Help: "Total bytes streamed to working files",
		}),
		limitReached: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ripfetch_download_limit_reached_total",
			Help: "Times the per-job download limit was reached",
		}),
		seen: make(map[string]int64),
	}
	o.Registry.MustRegister(o.started, o.finished, o.bytes, o.limitReached)
	return o
}

// Handler serves the observer's registry in the exposition format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.Registry, promhttp.HandlerOpts{})
}

func (o *Observer) Started(url string) {
	o.started.Inc()
}

func (o *Observer) TotalBytes(string, int64) {}

// BytesCompleted receives cumulative counts; only the growth since the last
// report for url is added.
func (o *Observer) BytesCompleted(url string, n int64) {
	o.mu.Lock()
	delta := n - o.seen[url]
	if delta > 0 {
		o.seen[url] = n
	}
	o.mu.Unlock()
	if delta > 0 {
		o.bytes.Add(float64(delta))
	}
}

func (o *Observer) done(url, status string) {
	o.mu.Lock()
	delete(o.seen, url)
	o.mu.Unlock()
	o.finished.WithLabelValues(status).Inc()
}

func (o *Observer) Exists(url, _ string) { o.done(url, "exists") }
func (o *Observer) Skipped(url, _ string) { o.done(url, "skipped") }
func (o *Observer) Completed(url, _ string) { o.done(url, "completed") }
func (o *Observer) Errored(url string, _ error) { o.done(url, "errored") }
func (o *Observer) Interrupted(url string) { o.done(url, "interrupted") }

func (o *Observer) LimitReached() {
	o.limitReached.Inc()
}
