package app

import (
	"context"
	"fmt"

	"github.com/yungbote/neurobridge-competency/internal/data/db"
	"github.com/yungbote/neurobridge-competency/internal/http"
	"github.com/yungbote/neurobridge-competency/internal/manifest"
	"github.com/yungbote/neurobridge-competency/internal/modules/competency"
	"github.com/yungbote/neurobridge-competency/internal/observability"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
	"github.com/yungbote/neurobridge-competency/internal/temporalx/temporalworker"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Clients  Clients
	Services Services

	shutdownOtel func(context.Context) error
}

type Options struct {
	// ContentRoot overrides CONTENT_ROOT; the CLI sets it to the manifest's
	// directory.
	ContentRoot string
	// Temporal dials the workflow engine; serve and worker need it.
	Temporal bool
	// SkipMigrate leaves the schema alone.
	SkipMigrate bool
}

func New(ctx context.Context, opts Options) (*App, error) {
	cfg := LoadConfig()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if opts.ContentRoot != "" {
		cfg.ContentRoot = opts.ContentRoot
	}

	shutdownOtel := observability.InitOTel(ctx, log, cfg.Otel)
	observability.Init(log)

	clients, err := wireClients(ctx, log, cfg, clientOptions{withTemporal: opts.Temporal})
	if err != nil {
		_ = shutdownOtel(ctx)
		log.Sync()
		return nil, err
	}
	if !opts.SkipMigrate {
		if err := db.AutoMigrateAll(clients.DB); err != nil {
			clients.Close(log)
			_ = shutdownOtel(ctx)
			log.Sync()
			return nil, fmt.Errorf("automigrate: %w", err)
		}
	}

	services, err := wireServices(ctx, log, cfg, clients, manifest.FileLoader{Root: cfg.ContentRoot})
	if err != nil {
		clients.Close(log)
		_ = shutdownOtel(ctx)
		log.Sync()
		return nil, err
	}

	return &App{
		Log:          log,
		Cfg:          cfg,
		Clients:      clients,
		Services:     services,
		shutdownOtel: shutdownOtel,
	}, nil
}

func (a *App) Usecases() competency.Usecases { return a.Services.Usecases }

// Migrate applies the schema explicitly.
func (a *App) Migrate() error {
	return db.AutoMigrateAll(a.Clients.DB)
}

// Serve runs the HTTP API until ctx is canceled.
func (a *App) Serve(ctx context.Context) error {
	router, err := wireRouter(a.Log, a.Cfg, a.Clients, a.Services)
	if err != nil {
		return err
	}
	a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTPAddr)
	return (&http.Server{Engine: router}).Run(ctx, a.Cfg.HTTPAddr)
}

// RunWorker polls the course-run task queue until ctx is canceled.
func (a *App) RunWorker(ctx context.Context) error {
	if a.Clients.Temporal == nil {
		return fmt.Errorf("worker needs TEMPORAL_ADDRESS")
	}
	runner, err := temporalworker.NewRunner(a.Log, a.Clients.Temporal, a.Cfg.Temporal, a.Services.Activities)
	if err != nil {
		return err
	}
	if err := runner.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close(a.Log)
	if a.shutdownOtel != nil {
		if err := a.shutdownOtel(context.Background()); err != nil {
			a.Log.Warn("OpenTelemetry shutdown failed", "error", err)
		}
	}
	a.Log.Sync()
}
