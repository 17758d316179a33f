package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linnemanlabs/go-core/health"
	"github.com/linnemanlabs/go-core/metrics"
	"github.com/linnemanlabs/go-core/opshttp"
	"github.com/linnemanlabs/go-core/otelx"
	"github.com/linnemanlabs/go-core/prof"
	v "github.com/linnemanlabs/go-core/version"
	"golang.org/x/sync/errgroup"

	vc "github.com/linnemanlabs/dbugger/internal/cfg"
	"github.com/linnemanlabs/dbugger/internal/incident"
	"github.com/linnemanlabs/dbugger/internal/keyword"
	"github.com/linnemanlabs/dbugger/internal/logbus"
	"github.com/linnemanlabs/dbugger/internal/monitor"
	"github.com/linnemanlabs/dbugger/internal/pm2"
)

// logTarget is one file the monitor follows.
type logTarget struct {
	path   string
	stream string
}

func (a *app) runMonitor(ctx context.Context) error {
	L := a.L
	vi := v.Get()

	conf, err := vc.Load(a.configPath)
	if err != nil {
		return err
	}
	logConfigWarnings(ctx, L, conf)

	L.Info(ctx, "initializing monitor",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"process", conf.ProcessName,
		"keywords", conf.ErrorKeywords,
		"quiet_period", conf.QuietPeriod.String(),
		"model", conf.AnthropicModel,
		"admin_port", a.opsCfg.Port,
		"enable_pyroscope", a.profCfg.EnablePyroscope,
		"enable_tracing", a.traceCfg.EnableTracing,
	)

	// Setup pyroscope profiling early so we get profiles from the entire app lifetime
	profOpts := a.profCfg.ToOptions()
	profOpts.AppName = v.AppName
	profOpts.Tags = map[string]string{
		"app":       v.AppName,
		"component": v.Component,
		"version":   vi.Version,
		"commit":    vi.Commit,
		"build_id":  vi.BuildId,
		"process":   conf.ProcessName,
	}
	stopProf, profErr := prof.Start(ctx, profOpts)
	if profErr != nil {
		L.Error(ctx, profErr, "pyroscope start failed", "pyro_server", a.profCfg.PyroServer)
	}
	if stopProf != nil {
		defer stopProf()
	}

	shutdownOtelx := a.startTracing(ctx)
	if shutdownOtelx != nil {
		defer func() { _ = shutdownOtelx(context.Background()) }()
	}

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, v.Component, &vi)
	m.SetProfilingActive(profErr == nil && a.profCfg.EnablePyroscope)
	incidentMetrics := incident.NewMetrics(m.Registry())

	targets, err := a.resolveLogTargets(ctx, conf)
	if err != nil {
		return err
	}

	bus := logbus.NewBus(L)
	followers := make([]*logbus.Follower, 0, len(targets))
	for _, t := range targets {
		f, err := logbus.NewFollower(logbus.FollowerOptions{
			Path:    t.path,
			Process: conf.ProcessName,
			Stream:  t.stream,
			Bus:     bus,
			Logger:  L,
		})
		if err != nil {
			closeFollowers(followers)
			return fmt.Errorf("follow %s: %w", t.path, err)
		}
		followers = append(followers, f)
	}

	pipeline := newPipeline(conf, L, incidentMetrics.Hooks())
	mon := monitor.New(monitor.Options{
		ProcessName: conf.ProcessName,
		Keywords:    keyword.New(conf.ErrorKeywords...),
		QuietPeriod: conf.QuietPeriod,
		Bus:         bus,
		Trigger: func(ctx context.Context, raw string) {
			pipeline.Run(ctx, raw)
		},
		Logger:  L,
		OnMatch: incidentMetrics.MatchesTotal.Inc,
	})

	// readiness fails once shutdown starts
	var shutdownGate health.ShutdownGate
	readiness := health.All(
		shutdownGate.Probe(),
	)
	liveness := health.Fixed(true, "")

	opsOpts := a.opsCfg.ToOptions()
	opsOpts.Metrics = m.Handler()
	opsOpts.Health = liveness
	opsOpts.Readiness = readiness
	opsOpts.UseRecoverMW = true
	opsOpts.OnPanic = m.IncHttpPanic

	opsHTTPStop, err := opshttp.Start(ctx, L, opsOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		closeFollowers(followers)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range followers {
		g.Go(func() error { return f.Run(gctx) })
	}
	monDone := make(chan struct{})
	g.Go(func() error {
		defer close(monDone)
		return mon.Run(gctx)
	})

	L.Info(ctx, "connected to pm2 log stream", "outcome", "success", "files", len(followers))

	// Notify systemd that we started successfully if started under systemd
	if err := notifySystemd(); err != nil {
		// log and dont exit, worst case systemd will kill the process after timeout
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	// Wait for ctrl+c / sigterm
	<-gctx.Done()

	L.Info(context.Background(), "shutdown signal received")
	shutdownGate.Set("draining")

	// the monitor returns once a running incident has been delivered
	drainDuration := time.Duration(a.runtime.DrainSeconds) * time.Second
	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	drained := false
	select {
	case <-monDone:
		drained = true
	case <-time.After(drainDuration):
		L.Warn(context.Background(), "drain period elapsed with an incident still in flight", "drain_seconds", a.runtime.DrainSeconds)
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	var runErr error
	if drained {
		runErr = g.Wait()
	}

	// Shutdown components with per-component budget sliced from total.
	type stopFn struct {
		name string
		fn   func(context.Context) error
	}
	stopFns := []stopFn{
		{"ops http server", opsHTTPStop},
	}
	if shutdownOtelx != nil {
		stopFns = append(stopFns, stopFn{"otel", shutdownOtelx})
	}

	budget := time.Duration(a.runtime.ShutdownBudgetSeconds) * time.Second
	perComponent := budget / time.Duration(len(stopFns))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	for _, s := range stopFns {
		cctx, ccancel := context.WithTimeout(shutdownCtx, perComponent)
		if err := s.fn(cctx); err != nil {
			L.Error(context.Background(), err, s.name+" shutdown")
		}
		ccancel()
	}

	L.Info(context.Background(), "shutdown complete")
	return runErr
}

// startTracing initializes otel and returns its shutdown function, or nil
// when initialization failed.
func (a *app) startTracing(ctx context.Context) func(context.Context) error {
	traceOpts := a.traceCfg.ToOptions()
	traceOpts.Service = v.AppName
	traceOpts.Component = v.Component
	traceOpts.Version = v.Version

	shutdownOtelx, err := otelx.Init(ctx, traceOpts)
	if err != nil {
		a.L.Error(ctx, err, "otel init failed")
	}
	return shutdownOtelx
}

// resolveLogTargets returns the files to follow: configured log_paths, or
// the out and error logs pm2 reports for the process.
func (a *app) resolveLogTargets(ctx context.Context, conf *vc.Config) ([]logTarget, error) {
	if len(conf.LogPaths) > 0 {
		targets := make([]logTarget, 0, len(conf.LogPaths))
		for _, p := range conf.LogPaths {
			targets = append(targets, logTarget{path: p, stream: logbus.StreamOut})
		}
		return targets, nil
	}

	proc, err := pm2.New(conf.PM2Bin, nil).Describe(ctx, conf.ProcessName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pm2: %w", err)
	}
	a.L.Info(ctx, "resolved pm2 process",
		"pm_id", proc.ID,
		"pid", proc.PID,
		"status", proc.Status,
		"out_log", proc.OutLogPath,
		"err_log", proc.ErrLogPath,
	)

	var targets []logTarget
	if proc.OutLogPath != "" {
		targets = append(targets, logTarget{path: proc.OutLogPath, stream: logbus.StreamOut})
	}
	if proc.ErrLogPath != "" && proc.ErrLogPath != proc.OutLogPath {
		targets = append(targets, logTarget{path: proc.ErrLogPath, stream: logbus.StreamErr})
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("pm2 process %s has no log files", conf.ProcessName)
	}
	return targets, nil
}

func closeFollowers(fs []*logbus.Follower) {
	for _, f := range fs {
		_ = f.Close()
	}
}
