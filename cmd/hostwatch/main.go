package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/secsuite/hostwatch/internal/config"
	"github.com/secsuite/hostwatch/internal/poller"
	"github.com/secsuite/hostwatch/internal/probe"
	"github.com/secsuite/hostwatch/internal/sampler"
	"github.com/secsuite/hostwatch/internal/store"
	"github.com/secsuite/hostwatch/internal/tail"
	"golang.org/x/sync/errgroup"
)

const externalIPEchoURL = "https://api.ipify.org"

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// buildInfo returns version, commit, build time, and VCS details from the
// embedded Go build info. ldflags-injected values take priority; VCS info
// from debug.ReadBuildInfo fills in anything left as default.
func buildInfo() (ver, sha, built, dirty string) {
	ver = version
	sha = commit
	built = buildTime
	dirty = "clean"

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if sha == "none" {
				sha = s.Value
			}
		case "vcs.time":
			if built == "unknown" {
				built = s.Value
			}
		case "vcs.modified":
			if s.Value == "true" {
				dirty = "dirty"
			}
		}
	}

	return
}

func sinkFromConfig(db config.DatabaseConfig) (*store.Sink, error) {
	switch db.Driver {
	case "sqlite":
		return store.New("sqlite", store.SQLiteDSN(db.Path))
	case "mysql":
		return store.New("mysql", store.MySQLDSN(db.User, db.Password, db.Host, db.Name))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", db.Driver)
	}
}

func main() {
	configPath := flag.String("config", "", "path to hostwatch.yml config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	ver, sha, built, dirty := buildInfo()

	if *showVersion {
		fmt.Printf("hostwatch %s\n  commit:    %s (%s)\n  built:     %s\n  go:        %s\n  platform:  %s/%s\n",
			ver, sha, dirty, built, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config (%s): %s\n", *configPath, err)
		os.Exit(1)
	}

	// Configure logging
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("starting hostwatch",
		"version", ver,
		"commit", sha,
		"built", built,
		"dirty", dirty,
		"go", runtime.Version(),
		"interval_seconds", cfg.PollingInterval,
		"db_driver", cfg.Database.Driver,
	)

	// Initialize the sink. A missing driver is the one fatal startup check;
	// an unreachable database is not — writes are dropped until it returns.
	sink, err := sinkFromConfig(cfg.Database)
	if err != nil {
		slog.Error("initializing database sink", "error", err)
		os.Exit(1)
	}
	if err := sink.EnsureSchema(context.Background()); err != nil {
		slog.Warn("schema bootstrap failed, assuming tables exist", "error", err)
	}

	// Setup context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	// Start the metrics poll loop
	metrics := poller.New(
		poller.Config{
			Interval:     cfg.Interval(),
			PingCount:    cfg.PingCount,
			ExternalHost: cfg.ExternalProbeHost,
		},
		sampler.SystemStats{},
		probe.IPRouteTable{},
		probe.PingProber{Timeout: cfg.PingTimeout()},
		probe.NewEchoService(externalIPEchoURL),
		sink,
	)
	g.Go(func() error { return metrics.Run(ctx) })

	// Start the login tail loop
	watcher := tail.NewLoginWatcher(cfg.AuthLog, sink)
	g.Go(func() error { return watcher.Run(ctx) })

	slog.Info("all components started", "auth_log", cfg.AuthLog)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal error", "error", err)
	}

	slog.Info("hostwatch stopped gracefully")
}
