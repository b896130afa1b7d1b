package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/tanq16/ripfetch/internal/config"
	"github.com/tanq16/ripfetch/internal/dedup"
	riphttp "github.com/tanq16/ripfetch/internal/downloaders/http"
	"github.com/tanq16/ripfetch/internal/downloaders/s3"
	"github.com/tanq16/ripfetch/internal/metrics"
	"github.com/tanq16/ripfetch/internal/output"
	"github.com/tanq16/ripfetch/internal/scheduler"
	"github.com/tanq16/ripfetch/internal/utils"
)

var errTasksFailed = errors.New("encountered failed download(s)")

// runTasks executes tasks as one job and returns an error when any of them
// failed. Ctrl-C interrupts running tasks; resumable working files are kept.
func runTasks(c *config.Config, tasks []*utils.Task) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := output.NewConsole(os.Stdout)
	observers := utils.MultiObserver{console}
	if c.Debug {
		observers = append(observers, output.NewLogger(log.Logger))
	}
	if c.MetricsAddr != "" {
		m := metrics.NewObserver()
		observers = append(observers, m)
		srv := serveMetrics(c.MetricsAddr, m)
		defer shutdown(srv)
	}

	registry, closeDedup, err := openDedup(c.DedupDB, c.DedupScope)
	if err != nil {
		return err
	}
	defer closeDedup()
	job := scheduler.New(scheduler.Options{
		MaxPerDomain: c.MaxPerDomain,
		MaxDownloads: c.MaxDownloads,
		Dedup:        registry,
		Observer:     observers,
	})

	deps := job.Deps()
	client := utils.NewHTTPClient(c.HTTPClientConfig())
	opts := c.DownloadOptions()
	stream := riphttp.NewStreamDownloader(client, opts, deps)
	job.Register(scheduler.KindHTTP, riphttp.NewFileDownloader(client, opts, deps))
	job.Register(scheduler.KindStream, stream)
	job.Register(scheduler.KindS3, s3.NewPool(c.S3Options(), stream, deps.Observer))

	log.Debug().Str("op", "cmd/run").Str("job", job.ID).Int("tasks", len(tasks)).Msg("Starting job")
	console.Start()
	for _, task := range tasks {
		job.Submit(ctx, task)
	}
	summary := job.Wait()
	console.Stop()

	if summary.Failed() > 0 {
		return errTasksFailed
	}
	return nil
}

// openDedup returns the SQLite registry when a database is configured and an
// in-memory one otherwise. Runs sharing a scope share their hashes.
func openDedup(dbFile, scope string) (utils.DedupRegistry, func(), error) {
	if dbFile == "" {
		return dedup.NewMemoryRegistry(), func() {}, nil
	}
	reg, err := dedup.OpenSQLite(dbFile, scope)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening dedup database: %w", err)
	}
	log.Debug().Str("op", "cmd/run").Str("db", dbFile).Str("scope", scope).Msg("Using persistent dedup registry")
	return reg, func() { reg.Close() }, nil
}

func serveMetrics(addr string, m *metrics.Observer) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", m.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Str("op", "cmd/metrics").Err(err).Msg("Metrics server failed")
		}
	}()
	return srv
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
