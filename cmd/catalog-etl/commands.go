package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JonMunkholm/catalog-etl/internal/acquire"
	"github.com/JonMunkholm/catalog-etl/internal/config"
	"github.com/JonMunkholm/catalog-etl/internal/core"
	"github.com/JonMunkholm/catalog-etl/internal/pipeline"
	"github.com/JonMunkholm/catalog-etl/internal/store"
	"github.com/JonMunkholm/catalog-etl/internal/web"
)

// errRunFailed is returned after a failed run has been logged.
var errRunFailed = errors.New("run failed")

type runCommand struct {
	app *app

	FeedURL          string `long:"feed-url" description:"Override the configured feed URL"`
	ChunkSize        int    `long:"chunk-size" description:"Override the configured rows per chunk"`
	DatabaseURL      string `long:"database-url" description:"Override the configured database URL"`
	DecompressToDisk bool   `long:"decompress-to-disk" description:"Write the decompressed CSV before streaming it"`
	KeepFiles        bool   `long:"keep-files" description:"Keep the downloaded and decompressed files"`
	Migrate          bool   `long:"migrate" description:"Create the catalog tables before loading"`
	DryRun           bool   `long:"dry-run" description:"Load into memory and discard the rows"`
}

func (c *runCommand) Execute(_ []string) error {
	cfg := c.app.cfg
	logger := c.app.logger

	dsn := c.databaseURL(cfg)
	if c.Migrate {
		if err := migrateLogged(c.app, dsn); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(c.pipelineConfig(cfg), pipeline.Deps{
		Fetcher:  newFetcher(cfg, c.app),
		OpenSink: sinkOpener(dsn, cfg),
		Logger:   logger,
	})

	rep, err := p.Run(ctx)
	if err != nil {
		logger.Error(pipeline.Describe(err).String())
		return errRunFailed
	}

	for _, table := range core.TableNames() {
		logger.Info("table loaded", "table", table, "rows", rep.Rows[table])
	}
	return nil
}

func (c *runCommand) databaseURL(cfg *config.Config) string {
	switch {
	case c.DryRun:
		return "memory://"
	case c.DatabaseURL != "":
		return c.DatabaseURL
	default:
		return cfg.Database.URL
	}
}

// pipelineConfig merges command-line overrides into the configured feed.
func (c *runCommand) pipelineConfig(cfg *config.Config) pipeline.Config {
	pc := feedConfig(cfg)
	if c.FeedURL != "" {
		pc.FeedURL = c.FeedURL
	}
	if c.ChunkSize > 0 {
		pc.ChunkSize = c.ChunkSize
	}
	pc.DecompressToDisk = pc.DecompressToDisk || c.DecompressToDisk
	pc.KeepFiles = pc.KeepFiles || c.KeepFiles
	return pc
}

type serveCommand struct {
	app *app

	Migrate bool `long:"migrate" description:"Create the catalog tables before serving"`
}

func (c *serveCommand) Execute(_ []string) error {
	cfg := c.app.cfg
	logger := c.app.logger

	if c.Migrate {
		if err := migrateLogged(c.app, cfg.Database.URL); err != nil {
			return err
		}
	}

	ctx := context.Background()

	// Row counts for /api/tables come from a long-lived connection; every run
	// opens and closes its own sink.
	counter, err := store.Open(ctx, cfg.Database.URL, cfg.Database.PoolConfig())
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return err
	}
	defer counter.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	service := pipeline.NewService(pipeline.ServiceConfig{
		Pipeline:      feedConfig(cfg),
		MaxConcurrent: cfg.Run.MaxConcurrent,
		MaxWait:       cfg.Run.MaxWaitTime,
		History:       cfg.Run.History,
	}, pipeline.Deps{
		Fetcher:  newFetcher(cfg, c.app),
		OpenSink: sinkOpener(cfg.Database.URL, cfg),
		Logger:   logger,
	}, pipeline.NewMetrics(reg))

	server := web.NewServer(service, web.Options{
		Security:       cfg.Security,
		RequestTimeout: cfg.Server.RequestTimeout,
		Gatherer:       reg,
		Tables:         counter,
		Logger:         logger,
	})

	logger.Info("tables registered", "count", core.TableCount())

	// Create cancellable context for the scheduler
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	if cfg.Run.Interval > 0 {
		go service.StartScheduler(jobCtx, cfg.Run.Interval)
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down...")

		// Stop scheduling new runs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}

		// Runs already streaming are allowed to finish.
		if n := service.Active(); n > 0 {
			logger.Info("waiting for runs to complete", "active", n)
		}
		if err := service.Shutdown(shutdownCtx); err != nil {
			logger.Warn("runs did not complete in time", "error", err)
		}
	}()

	if err := server.Start(cfg.Server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		return err
	}
	<-done
	logger.Info("server stopped")
	return nil
}

type migrateCommand struct {
	app *app

	DatabaseURL string `long:"database-url" description:"Override the configured database URL"`
}

func (c *migrateCommand) Execute(_ []string) error {
	dsn := c.DatabaseURL
	if dsn == "" {
		dsn = c.app.cfg.Database.URL
	}
	return migrateLogged(c.app, dsn)
}

func migrateLogged(a *app, dsn string) error {
	version, dirty, err := store.Migrate(dsn)
	if err != nil {
		a.logger.Error("migration failed", "error", err)
		return err
	}
	a.logger.Info("schema up to date", "version", version, "dirty", dirty)
	return nil
}

func feedConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		FeedURL:          cfg.Feed.URL,
		WorkDir:          cfg.Feed.WorkDir,
		ChunkSize:        cfg.Feed.ChunkSize,
		DecompressToDisk: cfg.Feed.DecompressToDisk,
		KeepFiles:        cfg.Feed.KeepFiles,
	}
}

func newFetcher(cfg *config.Config, a *app) *acquire.Fetcher {
	return acquire.NewFetcher(acquire.FetcherConfig{
		Parallel:  cfg.Download.Parallel,
		RetryMax:  cfg.Download.RetryMax,
		RetryWait: cfg.Download.RetryWait,
		Timeout:   cfg.Download.Timeout,
		Logger:    a.logger,
	})
}

func sinkOpener(dsn string, cfg *config.Config) pipeline.SinkOpener {
	pool := cfg.Database.PoolConfig()
	return func(ctx context.Context) (core.Sink, error) {
		return store.Open(ctx, dsn, pool)
	}
}
