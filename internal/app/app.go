// Package app provides the application initialization and lifecycle management
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/fieldsync/internal/auth"
	"github.com/tildaslashalef/fieldsync/internal/config"
	"github.com/tildaslashalef/fieldsync/internal/connectivity"
	"github.com/tildaslashalef/fieldsync/internal/database"
	"github.com/tildaslashalef/fieldsync/internal/loggy"
	"github.com/tildaslashalef/fieldsync/internal/remote"
	"github.com/tildaslashalef/fieldsync/internal/store"
	syncsvc "github.com/tildaslashalef/fieldsync/internal/sync"
)

// App represents the application instance with its dependencies
type App struct {
	Config  *config.Config
	Store   *store.Service
	Auth    *auth.Service
	Sync    *syncsvc.Service
	Monitor *connectivity.Monitor
	Remote  *remote.Client

	cancelMonitor context.CancelFunc
	unsubscribe   func()
}

// New initializes a new application instance with all its dependencies
func New() (*App, error) {
	cfg, err := initConfig()
	if err != nil {
		return nil, err
	}

	if err := initLogger(cfg); err != nil {
		return nil, err
	}

	loggy.Info("Application initializing", "log_level", cfg.Logging.Level)

	if err := database.InitDB(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// A fresh device provisions its own schema
	applied, err := database.RunMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	if applied > 0 {
		loggy.Info("Applied database migrations", "count", applied)
	}

	db, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	app, err := initServices(cfg, db)
	if err != nil {
		return nil, err
	}

	loggy.Info("Application initialized successfully")
	return app, nil
}

// initConfig loads and sets up the application configuration
func initConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnv("", "")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	config.Set(cfg)
	return cfg, nil
}

// initLogger initializes the logging system
func initLogger(cfg *config.Config) error {
	err := loggy.Init(loggy.Config{
		Level:      config.ParseLogLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initServices initializes all application services
func initServices(cfg *config.Config, db *sql.DB) (*App, error) {
	logger := loggy.GetGlobalLogger()
	ctx := context.Background()

	remoteClient := remote.NewClient(cfg.Server, logger)

	// The monitor probes the service's own health endpoint first and only
	// falls back to the well-known external URL when that fails
	monitor := connectivity.NewMonitor(remoteClient.HealthURL(), cfg.Connectivity, logger)

	storeService := store.NewService(store.NewSQLRepository(db, logger), logger)
	authService := auth.NewService(auth.NewSQLRepository(db, logger), remoteClient, monitor, logger)
	syncService := syncsvc.NewService(storeService, syncsvc.NewSQLRepository(db, logger), remoteClient, monitor, logger)

	// Restore the persisted session token so remote calls are authenticated
	// without a fresh login
	if _, err := authService.CurrentSession(ctx); err != nil && !errors.Is(err, auth.ErrNoSession) {
		loggy.Warn("Failed to restore session", "error", err)
	}

	// An offline-to-online transition starts an automatic sync run
	unsubscribe := monitor.Subscribe(syncService.HandleConnectivityChange)

	monitorCtx, cancel := context.WithCancel(context.Background())
	go monitor.Start(monitorCtx)

	return &App{
		Config:        cfg,
		Store:         storeService,
		Auth:          authService,
		Sync:          syncService,
		Monitor:       monitor,
		Remote:        remoteClient,
		cancelMonitor: cancel,
		unsubscribe:   unsubscribe,
	}, nil
}

// Shutdown gracefully shuts down the application
func (app *App) Shutdown() error {
	loggy.Info("Shutting down application")

	if app.unsubscribe != nil {
		app.unsubscribe()
	}
	if app.cancelMonitor != nil {
		app.cancelMonitor()
	}

	if err := database.CloseDB(); err != nil {
		loggy.Error("Error closing database connection", "error", err)
	}

	return nil
}

// FromContext retrieves the App instance from the CLI context
func FromContext(c *cli.Context) (*App, error) {
	if c.App.Metadata == nil {
		return nil, fmt.Errorf("app metadata not found in context")
	}

	application, ok := c.App.Metadata["app"].(*App)
	if !ok {
		return nil, fmt.Errorf("app instance not found in context")
	}

	return application, nil
}
