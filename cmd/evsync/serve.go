package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/evsync/internal/web"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "core",
	Short:   "Run the sync HTTP API",
	Long: `Serve the sync trigger, progress events, run history and health check.

On SIGINT or SIGTERM the server waits for a running sync to finish, up to
SERVER_SHUTDOWN_TIMEOUT, before closing connections.`,
	Args: cobra.NoArgs,
	RunE: runServe,
	Annotations: map[string]string{
		annotationLogStdout: "",
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (overrides SERVER_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"source_provider", cfg.Sources.Provider,
		"sync_max_concurrent", cfg.Sync.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	a, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		return err
	}
	defer a.Close()

	slog.Info("sources configured", "count", len(a.service.Sources()))
	for _, src := range a.service.Sources() {
		slog.Debug("source", "id", src.ID, "range", src.Range)
	}

	server := web.NewServer(a.service, web.Deps{Runs: a.store, DB: a.store}, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("server stopped", "error", err)
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Wait for an active sync to complete (with timeout)
	if status := a.service.Limiter().Status(); status.Active > 0 {
		slog.Info("waiting for sync to complete", "active", status.Active)
		if err := a.service.Limiter().WaitForDrain(shutdownCtx); err != nil {
			slog.Warn("sync did not complete in time", "error", err)
		} else {
			slog.Info("sync completed")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	return <-errCh
}
