package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/focustrack/internal/api"
	"github.com/sadopc/focustrack/internal/command"
	"github.com/sadopc/focustrack/internal/config"
	"github.com/sadopc/focustrack/internal/export"
	"github.com/sadopc/focustrack/internal/logging"
	"github.com/sadopc/focustrack/internal/normalize"
	"github.com/sadopc/focustrack/internal/retention"
	"github.com/sadopc/focustrack/internal/sampler"
	"github.com/sadopc/focustrack/internal/stats"
	"github.com/sadopc/focustrack/internal/store"
	"github.com/sadopc/focustrack/internal/tracker"
	"github.com/sadopc/focustrack/internal/tui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := command.BuildApp(command.Deps{
		RunServe:   runServe,
		RunTUI:     runTUI,
		RunExport:  runExport,
		RunCleanup: runCleanup,
	})
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// engine is the shared core every command opens.
type engine struct {
	log   *slog.Logger
	norm  *normalize.Normalizer
	store *store.Store
	stats *stats.Engine

	closers []io.Closer
}

func openEngine(cfg config.Config, quiet bool) (*engine, error) {
	lg, logCloser, err := logging.NewLogger(logging.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
		Quiet: quiet,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	norm := normalize.New()
	if dropped := norm.SetRules(cfg.Normalize.Rules); len(dropped) > 0 {
		lg.Warn("normalization rules shadowed by earlier rules", "keys", dropped)
	}
	st, err := store.New(cfg.DBPath, store.WithNormalizer(norm))
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &engine{
		log:     lg,
		norm:    norm,
		store:   st,
		stats:   stats.New(st, stats.WithNormalizer(norm)),
		closers: []io.Closer{st, logCloser},
	}, nil
}

func (e *engine) Close() {
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			e.log.Warn("close", "error", err)
		}
	}
}

// startTracker detects a window sampler and runs the tracker until ctx is
// done. It returns nil when no window system is available. wait blocks
// until the final activity is closed.
func (e *engine) startTracker(ctx context.Context, cfg config.Config) (trk *tracker.Tracker, wait func()) {
	smp, kind, err := sampler.Detect(ctx, nil)
	if err != nil {
		if errors.Is(err, sampler.ErrUnavailable) {
			e.log.Warn("tracking disabled", "error", err)
		} else {
			e.log.Error("detect window sampler", "error", err)
		}
		return nil, func() {}
	}
	e.log.Info("window sampler", "kind", kind)

	trk = tracker.New(tracker.Config{
		Store:        e.store,
		Sampler:      sampler.WithTimeout(smp, cfg.Tracker.SampleTimeout),
		Normalizer:   e.norm,
		PollInterval: cfg.Tracker.PollInterval,
		Logger:       e.log.With("component", "tracker"),
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := trk.Run(ctx); err != nil {
			e.log.Error("tracker stopped", "error", err)
		}
	}()
	return trk, wg.Wait
}

func runServe(ctx context.Context, cfg config.Config) error {
	e, err := openEngine(cfg, false)
	if err != nil {
		return err
	}
	defer e.Close()
	log := e.log

	ctx, cancel := context.WithCancel(ctx)
	trk, waitTracker := e.startTracker(ctx, cfg)
	defer waitTracker()
	defer cancel()

	deps := api.Deps{Store: e.store, Stats: e.stats}
	if trk != nil {
		deps.Tracker = trk
		if cfg.Tracker.Resume {
			if err := trk.Resume(ctx); err != nil {
				log.Warn("resume tracking", "error", err)
			}
		}
	}

	if cfg.Path != "" {
		w := config.NewWatcher(cfg.Path, log, func(next config.Config) {
			if dropped := e.norm.SetRules(next.Normalize.Rules); len(dropped) > 0 {
				log.Warn("normalization rules shadowed by earlier rules", "keys", dropped)
			}
			log.Info("normalization rules reloaded", "rules", len(next.Normalize.Rules))
		})
		if err := w.Start(ctx); err != nil {
			log.Warn("config watcher disabled", "error", err)
		}
	}

	cleaner := retention.NewScheduler(retention.Config{
		Store:    e.store,
		Logger:   log.With("component", "retention"),
		Schedule: cfg.Retention.Schedule,
		Days:     cfg.Retention.Days,
	})
	if err := cleaner.Start(ctx); err != nil {
		return fmt.Errorf("start retention: %w", err)
	}
	defer cleaner.Stop()

	server := http.Server{
		Addr:              cfg.HTTP.Address,
		ReadHeaderTimeout: cfg.HTTP.Timeout,
		Handler:           api.NewHandler(log, deps, cfg.HTTP.Timeout),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("focustrack http server", "address", server.Addr, "tracker", trk != nil)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	return server.Shutdown(shutdownCtx)
}

func runTUI(ctx context.Context, cfg config.Config) error {
	// The alt screen owns stdout; logs go to the log file only.
	e, err := openEngine(cfg, true)
	if err != nil {
		return err
	}
	defer e.Close()

	trkCtx, cancel := context.WithCancel(ctx)
	trk, waitTracker := e.startTracker(trkCtx, cfg)
	defer waitTracker()
	defer cancel()

	deps := tui.Deps{Store: e.store, Stats: e.stats, Normalizer: e.norm}
	if trk != nil {
		deps.Tracker = trk
	}

	p := tea.NewProgram(tui.NewApp(deps), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func runExport(ctx context.Context, cfg config.Config, opts command.ExportOptions) error {
	e, err := openEngine(cfg, false)
	if err != nil {
		return err
	}
	defer e.Close()

	data, err := e.stats.Export(ctx, stats.ExportQuery{From: opts.From, To: opts.To, FolderID: opts.FolderID})
	if err != nil {
		return err
	}
	if opts.Out == "" || opts.Out == "-" {
		return export.Write(os.Stdout, opts.Format, data)
	}
	if err := export.ToFile(opts.Out, opts.Format, data); err != nil {
		return err
	}
	e.log.Info("export written", "path", opts.Out, "days", len(data.Days), "total_seconds", data.TotalDuration)
	return nil
}

func runCleanup(ctx context.Context, cfg config.Config, days int) error {
	e, err := openEngine(cfg, false)
	if err != nil {
		return err
	}
	defer e.Close()

	_, err = retention.NewScheduler(retention.Config{
		Store:  e.store,
		Logger: e.log.With("component", "retention"),
		Days:   days,
	}).RunOnce(ctx)
	return err
}
