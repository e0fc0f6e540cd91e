package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/evsync/internal/config"
	"github.com/JonMunkholm/evsync/internal/core"
	"github.com/JonMunkholm/evsync/internal/source"
	"github.com/JonMunkholm/evsync/internal/store"
)

// app holds the collaborators shared by the commands that touch the
// database.
type app struct {
	pool    *pgxpool.Pool
	store   *store.Store
	service *core.Service
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// connect opens the pool and applies migrations when configured to.
func connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	slog.Info("connected to database", "name", databaseName(cfg.Database.URL))

	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx, pool, "up"); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return pool, nil
}

// newApp wires the store, the source provider and the sync service.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	pool, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{pool: pool}

	a.store, err = store.New(pool, cfg.Database.Table)
	if err != nil {
		a.Close()
		return nil, err
	}

	provider, err := newProvider(ctx, cfg.Sources)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.service, err = newService(cfg, provider, a.store, a.store)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// newProvider builds the grid provider named by cfg.Provider.
func newProvider(ctx context.Context, cfg config.SourcesConfig) (source.Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "csv":
		slog.Info("reading sources from csv files", "dir", cfg.CSVDir)
		return source.NewCSVReader(cfg.CSVDir), nil
	case "sheets", "":
		slog.Info("reading sources from google sheets", "spreadsheet", cfg.SpreadsheetID)
		return source.NewSheetsReader(ctx, source.SheetsOptions{
			SpreadsheetID:   cfg.SpreadsheetID,
			APIKey:          cfg.APIKey,
			CredentialsFile: cfg.CredentialsFile,
		})
	default:
		return nil, fmt.Errorf("unknown source provider %q", cfg.Provider)
	}
}

// newService resolves the configured source ranges and builds the service.
func newService(cfg *config.Config, p source.Provider, st core.Store, rec core.RunRecorder) (*core.Service, error) {
	sources, err := resolveSources(cfg.Sources)
	if err != nil {
		return nil, err
	}

	return core.NewService(p, st, core.Options{
		Sources:          sources,
		Timeout:          cfg.Sync.Timeout,
		FetchTimeout:     cfg.Sync.FetchTimeout,
		WriteConcurrency: cfg.Sync.WriteConcurrency,
		Limiter:          core.NewSyncLimiter(cfg.Sync.MaxConcurrent, cfg.Sync.MaxWaitTime),
		Recorder:         rec,
	})
}

func resolveSources(cfg config.SourcesConfig) ([]source.Source, error) {
	overrides, err := cfg.Ranges()
	if err != nil {
		return nil, err
	}
	return source.Resolve(overrides)
}

// databaseName extracts the database name from a connection URL for logs.
func databaseName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}
