package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ivlev/compositor/internal/compositor"
	"github.com/ivlev/compositor/internal/config"
	"github.com/ivlev/compositor/internal/geom"
	"github.com/ivlev/compositor/internal/graph"
	"github.com/ivlev/compositor/internal/logger"
	"github.com/ivlev/compositor/internal/metrics"
	"github.com/ivlev/compositor/internal/ops"
	"github.com/ivlev/compositor/internal/project"
	"github.com/ivlev/compositor/internal/source"
	"github.com/ivlev/compositor/internal/system"
	"github.com/ivlev/compositor/internal/timeline"
)

// openFileLimit covers one open decoder per active media layer.
const openFileLimit = 4096

// app is the state shared by every command.
type app struct {
	ctx     context.Context
	cfg     *config.Config
	log     *slog.Logger
	pool    *system.ImagePool
	metrics *metrics.Metrics
	reg     *graph.Registry
	assets  *source.Provider

	warnings atomic.Int64
	stop     context.CancelFunc
}

// newApp loads configuration, installs the logger and starts the metrics
// endpoint when configured. dir is the project directory for relative
// asset paths.
func newApp(cmd *cobra.Command, dir string) (*app, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.BuildVersion = version

	a := &app{cfg: cfg, pool: system.DefaultPool()}
	a.ctx, a.stop = signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)

	diagnostics := make(chan logger.Diagnostic, 64)
	opts := []logger.Option{logger.WithFormat(cfg.LogFormat), logger.WithNotify(diagnostics)}
	if cfg.Debug {
		opts = append(opts, logger.WithDebug())
	}
	a.log = logger.Setup(opts...)
	go func() {
		for {
			select {
			case <-diagnostics:
				a.warnings.Add(1)
			case <-a.ctx.Done():
				return
			}
		}
	}()
	if cfg.ConfigFile != "" {
		a.log.Debug("Config loaded", "file", cfg.ConfigFile)
	}

	system.InitResourceLimits(openFileLimit)

	a.metrics = metrics.New(a.pool)
	if cfg.MetricsAddr != "" {
		go func() {
			if err := a.metrics.Serve(a.ctx, cfg.MetricsAddr); err != nil {
				a.log.Error("Metrics server failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
	}

	assetsDir := cfg.AssetsDir
	if assetsDir == "" {
		assetsDir = dir
	}
	a.assets = source.NewProvider(assetsDir, cfg.CacheSize, a.log)
	if cfg.DPI > 0 {
		a.assets.DPI = cfg.DPI
	}

	a.reg = graph.NewRegistry()
	if err := ops.Register(a.reg, ops.Env{Assets: a.assets, Logger: a.log}); err != nil {
		a.stop()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	a.stop()
	a.log.Debug("Asset cache", "frames", a.assets.Stats())
	if n := a.warnings.Load(); n > 0 {
		a.log.Info("Finished with warnings", "count", n)
	}
}

func (a *app) defaults() project.Defaults {
	bg, _ := geom.ParseHex(a.cfg.Background)
	return project.Defaults{
		Width:      a.cfg.Width,
		Height:     a.cfg.Height,
		FPS:        a.cfg.FPS,
		SampleRate: a.cfg.SampleRate,
		Background: bg,
	}
}

// load builds the timeline of doc, filling missing format fields from the
// configuration.
func (a *app) load(doc *project.Document) (*timeline.Timeline, error) {
	a.defaults().Apply(doc)
	a.assets.SampleRate = doc.SampleRate
	return doc.Build(a.reg)
}

func (a *app) compositor(tl *timeline.Timeline) *compositor.Compositor {
	return compositor.New(tl,
		compositor.WithLogger(a.log),
		compositor.WithMetrics(a.metrics),
		compositor.WithPool(a.pool),
		compositor.WithWorkers(a.cfg.Workers),
	)
}

// projectArg returns the project path from args, or the newest project
// file in the working directory.
func projectArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	path, err := project.FindLatest(".")
	if err != nil {
		return "", fmt.Errorf("no project given and none found: %w", err)
	}
	return path, nil
}

func projectDir(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Dir(path)
	}
	return filepath.Dir(abs)
}
