package serverrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	cfgpkg "github.com/rzbill/ensdb/internal/config"
	"github.com/rzbill/ensdb/internal/runtime"
	grpcserver "github.com/rzbill/ensdb/internal/server/grpc"
	httpserver "github.com/rzbill/ensdb/internal/server/http"
	pebblestore "github.com/rzbill/ensdb/internal/storage/pebble"
	logpkg "github.com/rzbill/ensdb/pkg/log"
)

type Options struct {
	// ConfigPath is an optional .json/.yaml file; Config is used when empty.
	ConfigPath string
	Config     *cfgpkg.Config
	// Overrides applied after the file and ENS_* variables. Empty keeps
	// the configured value.
	DataDir  string
	GRPCAddr string
	HTTPAddr string
	LogLevel string

	Fsync pebblestore.FsyncMode
	// FsyncInterval applies when Fsync is FsyncModeInterval.
	FsyncInterval time.Duration
	Clean         bool
	// Logger replaces the one built from the logging config.
	Logger logpkg.Logger
}

// ResolveConfig layers defaults, the config file, ENS_* variables and the
// explicit overrides, in that order.
func ResolveConfig(opts Options) (cfgpkg.Config, error) {
	var cfg cfgpkg.Config
	switch {
	case opts.ConfigPath != "":
		c, err := cfgpkg.Load(opts.ConfigPath)
		if err != nil {
			return cfg, err
		}
		cfg = c
	case opts.Config != nil:
		cfg = *opts.Config
	default:
		cfg = cfgpkg.Default()
	}
	cfgpkg.FromEnv(&cfg)
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.GRPCAddr != "" {
		cfg.Server.GRPCAddr = opts.GRPCAddr
	}
	if opts.HTTPAddr != "" {
		cfg.Server.HTTPAddr = opts.HTTPAddr
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if cfg.DataDir == "" {
		cfg.DataDir = cfgpkg.DefaultDataDir()
	}
	return cfg, cfg.Validate()
}

// Run starts gRPC and HTTP servers and blocks until ctx is cancelled or a
// server fails to start.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := ResolveConfig(opts)
	if err != nil {
		return err
	}
	logger := opts.Logger
	if logger == nil {
		if logger, err = logpkg.ApplyConfig(&cfg.Logging); err != nil {
			return err
		}
	}
	// Pebble logs through the standard library.
	logpkg.RedirectStdLog(logger)

	rt, err := runtime.Open(runtime.Options{
		Config:        cfg,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Clean:         opts.Clean,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("open runtime: %w", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("runtime close failed", logpkg.Err(err))
		}
	}()

	st := rt.Stats()
	logger.Info("Starting ensdb server",
		logpkg.Str("grpc", cfg.Server.GRPCAddr),
		logpkg.Str("http", cfg.Server.HTTPAddr),
		logpkg.Str("data_dir", cfg.DataDir),
		logpkg.Uint32("capacity", st.Capacity),
		logpkg.Uint32("count", st.Count),
		logpkg.Str("level", cfg.Logging.Level),
	)

	gsrv := grpcserver.New(rt, logger)
	hsrv := httpserver.New(rt, logger)

	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := gsrv.ListenAndServe(sctx, cfg.Server.GRPCAddr); err != nil && sctx.Err() == nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, cfg.Server.HTTPAddr); err != nil && sctx.Err() == nil {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	var runErr error
	select {
	case <-sctx.Done():
	case runErr = <-errCh:
		logger.Error("server failed", logpkg.Err(runErr))
		stop()
	}
	// Stop the listeners before the runtime closes underneath them.
	gsrv.Close()
	hsrv.Close()
	wg.Wait()
	logger.Info("ensdb server stopped")
	return runErr
}
