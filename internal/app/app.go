// Package app assembles the daemon: config, logging, store, connectors,
// aggregators, sweeper and the scheduler that drives them.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"listingd/internal/cleanup"
	"listingd/internal/config"
	"listingd/internal/ingest"
	"listingd/internal/notify"
	"listingd/internal/runtime/supervisor"
	"listingd/internal/scheduler"
	"listingd/internal/source"
	"listingd/internal/store"
	logx "listingd/pkg/logx"
)

const (
	taskFetchJobs    = "fetch_jobs"
	taskFetchCourses = "fetch_courses"
	taskCleanup      = "cleanup"
)

type App struct {
	cfg     config.Config
	manager *config.Manager

	logSvc *logx.Service
	log    logx.Logger

	store    store.Store
	notifier *notify.Service
	sched    *scheduler.Service

	sup *supervisor.Supervisor
}

// New builds the full component graph from the config file. Registration
// failures (duplicate task, bad interval) surface here and abort startup.
func New(cfgPath string) (*App, error) {
	boot := logx.NewConsole("info")

	manager := config.NewManager(cfgPath, boot)
	cfg, err := manager.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logxConfig(cfg), nil)

	a := &App{cfg: cfg, manager: manager, logSvc: logSvc, log: log}

	// Notifier first so the log service can fan WARN+ lines into it.
	if cfg.Notify.Enabled {
		n, err := notify.New(notifyConfig(cfg.Notify), log.With(logx.String("comp", "notify")))
		if err != nil {
			return nil, err
		}
		a.notifier = n
		logSvc.SetSender(n)
	}

	st, err := store.Open(storeConfig(cfg.Storage), log.With(logx.String("comp", "store")))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = st

	if err := a.buildScheduler(); err != nil {
		_ = st.Close()
		return nil, err
	}

	// Hot reload applies what is safe to swap at runtime; task intervals
	// stay fixed for the process lifetime.
	manager.OnChange(func(c config.Config) {
		a.logSvc.Apply(logxConfig(c))
	})

	return a, nil
}

func (a *App) buildScheduler() error {
	cfg := a.cfg

	tick, _ := config.ParseDurationOrDefault("scheduler.tick", cfg.Scheduler.Tick, time.Minute)
	a.sched = scheduler.New(scheduler.Config{Tick: tick}, a.log.With(logx.String("comp", "scheduler")))

	if cfg.Scheduler.Jobs.IsEnabled() {
		agg := ingest.NewAggregator(store.KindJob,
			buildConnectors(cfg.Sources.Jobs),
			a.store, a.log)
		interval, err := config.ParseDurationField("scheduler.jobs.interval", cfg.Scheduler.Jobs.Interval)
		if err != nil {
			return err
		}
		if err := a.sched.Register(taskFetchJobs, interval, a.aggregatorAction(taskFetchJobs, agg)); err != nil {
			return err
		}
	}

	if cfg.Scheduler.Courses.IsEnabled() {
		agg := ingest.NewAggregator(store.KindCourse,
			buildConnectors(cfg.Sources.Courses),
			a.store, a.log)
		interval, err := config.ParseDurationField("scheduler.courses.interval", cfg.Scheduler.Courses.Interval)
		if err != nil {
			return err
		}
		if err := a.sched.Register(taskFetchCourses, interval, a.aggregatorAction(taskFetchCourses, agg)); err != nil {
			return err
		}
	}

	if cfg.Scheduler.Cleanup.IsEnabled() {
		sweeper, err := a.buildSweeper()
		if err != nil {
			return err
		}
		interval, err := config.ParseDurationField("scheduler.cleanup.interval", cfg.Scheduler.Cleanup.Interval)
		if err != nil {
			return err
		}
		if err := a.sched.Register(taskCleanup, interval, a.sweeperAction(sweeper)); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) buildSweeper() (*cleanup.Sweeper, error) {
	ret := a.cfg.Retention
	listings, err := config.ParseDurationOrDefault("retention.listings_max_age", ret.ListingsMaxAge, 720*time.Hour)
	if err != nil {
		return nil, err
	}
	runs, err := config.ParseDurationOrDefault("retention.runs_max_age", ret.RunsMaxAge, 4320*time.Hour)
	if err != nil {
		return nil, err
	}
	grace, err := config.ParseDurationOrDefault("retention.deactivate_after", ret.DeactivateAfter, 48*time.Hour)
	if err != nil {
		return nil, err
	}

	policies := []cleanup.RetentionPolicy{
		{Kind: store.KindJob, MaxAge: listings},
		{Kind: store.KindCourse, MaxAge: listings},
		{Kind: store.KindRun, MaxAge: runs},
	}
	return cleanup.New(a.store, policies, a.log,
		cleanup.WithDeactivation(
			cleanup.DeactivationPolicy{Kind: store.KindJob, Grace: grace},
			cleanup.DeactivationPolicy{Kind: store.KindCourse, Grace: grace},
		)), nil
}

// aggregatorAction adapts an aggregator run into a scheduler action and
// persists the outcome as run history (swept later by retention).
func (a *App) aggregatorAction(name string, agg *ingest.Aggregator) scheduler.Action {
	return func(ctx context.Context) error {
		started := time.Now()
		rep, err := agg.Run(ctx)
		a.appendRun(ctx, name, started, err, rep)
		return err
	}
}

func (a *App) sweeperAction(sw *cleanup.Sweeper) scheduler.Action {
	return func(ctx context.Context) error {
		started := time.Now()
		rep, err := sw.Run(ctx)
		a.appendRun(ctx, taskCleanup, started, err, rep)
		return err
	}
}

func (a *App) appendRun(ctx context.Context, name string, started time.Time, runErr error, detail any) {
	e := store.RunEntry{
		At:     started,
		Task:   name,
		OK:     runErr == nil,
		TookMS: time.Since(started).Milliseconds(),
	}
	if runErr != nil {
		e.Error = runErr.Error()
	}
	if b, err := json.Marshal(detail); err == nil {
		e.Detail = string(b)
	}
	if err := a.store.AppendRun(ctx, e); err != nil {
		a.log.Warn("run history append failed", logx.String("task", name), logx.Err(err))
	}
}

// Start launches the scheduler loop, the config watcher and the notifier
// worker as background activities of the host process.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))))

	a.sup.Go("scheduler", a.sched.Run)
	a.sup.Go("config-watch", a.manager.Watch)
	if a.notifier != nil {
		a.sup.Go("notify", a.notifier.Run)
	}

	// systemd integration is best-effort; outside a unit these are no-ops.
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		a.sup.Go0("sd-watchdog", func(ctx context.Context) {
			t := time.NewTicker(interval / 2)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
				}
			}
		})
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	a.log.Info("listingd started", logx.Int("tasks", len(a.sched.Snapshot())))
	return nil
}

// Stop requests cooperative shutdown: the scheduler finishes any invocation
// already in progress, then everything winds down.
func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if a.sup != nil {
		a.sup.Cancel()
		if err := a.sup.Wait(ctx); err != nil {
			a.log.Warn("shutdown wait expired", logx.Err(err))
		}
	}

	if a.store != nil {
		_ = a.store.Close()
	}
	a.log.Info("listingd stopped")
	return a.logSvc.Close()
}

// Snapshot exposes scheduler state for health/debug surfaces.
func (a *App) Snapshot() []scheduler.TaskStatus { return a.sched.Snapshot() }

func buildConnectors(cfgs []config.SourceConfig) []source.Connector {
	var out []source.Connector
	for _, sc := range cfgs {
		if !sc.IsEnabled() {
			continue
		}
		timeout, _ := config.ParseDurationField("", sc.Timeout)
		opts := source.Options{
			URL:        sc.URL,
			Limit:      sc.Limit,
			Timeout:    timeout,
			RatePerSec: sc.RatePerSec,
		}
		switch strings.ToLower(sc.Type) {
		case "remotive":
			out = append(out, source.NewRemotive(opts))
		case "arbeitnow":
			out = append(out, source.NewArbeitnow(opts))
		case "coursera":
			out = append(out, source.NewCoursera(opts))
		case "rss":
			org := sc.Org
			if org == "" {
				org = sc.Name
			}
			out = append(out, source.NewRSSFeed(sc.Name, org, sc.URL, sc.Keywords, opts))
		}
	}
	return out
}

func logxConfig(cfg config.Config) logx.Config {
	console := true
	if cfg.Logging.Console != nil {
		console = *cfg.Logging.Console
	}
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Notify: logx.NotifyConfig{
			Enabled:    cfg.Notify.Enabled,
			MinLevel:   cfg.Notify.MinLevel,
			RatePerSec: cfg.Notify.RatePerSec,
		},
	}
}

func notifyConfig(n config.NotifyConfig) notify.Config {
	return notify.Config{
		Enabled:    n.Enabled,
		Token:      n.Token,
		ChatID:     n.ChatID,
		ThreadID:   n.ThreadID,
		RatePerSec: n.RatePerSec,
		QueueSize:  n.QueueSize,
	}
}

func storeConfig(s config.StorageConfig) store.Config {
	busy, _ := config.ParseDurationField("storage.busy_timeout", s.BusyTimeout)
	return store.Config{Driver: s.Driver, Path: s.Path, BusyTimeout: busy}
}
