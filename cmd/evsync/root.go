package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/evsync/internal/config"
	"github.com/JonMunkholm/evsync/internal/logging"
)

// cfg is loaded once by the root command before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "evsync",
	Short: "Vehicle catalogue sync engine",
	Long: `evsync reads the twelve vehicle catalogue sources (one primary sheet
and eleven attribute sidecars), assembles them into vehicle records and
writes them to PostgreSQL.

Run "evsync serve" for the HTTP API or "evsync sync" for a one-off run.`,
	PersistentPreRunE: setupCommand,
	SilenceUsage:      true,
}

// Execute runs the root command with a context cancelled on SIGINT or
// SIGTERM.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Core Commands:"},
		&cobra.Group{ID: "management", Title: "Management Commands:"},
	)
}

// Command annotations read by setupCommand.
const (
	// annotationOffline marks commands that never open the database, so
	// DATABASE_URL is not required.
	annotationOffline = "evsync/offline"
	// annotationLogStdout marks commands whose stdout is a log stream rather
	// than command output.
	annotationLogStdout = "evsync/log-stdout"
)

// setupCommand loads .env and the configuration, then configures logging.
// Logs go to stderr so command output on stdout stays machine-readable;
// serve keeps the server's log stream on stdout.
func setupCommand(cmd *cobra.Command, _ []string) error {
	// Overload lets a local .env win over the shell environment.
	if err := godotenv.Overload(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	load := config.Load
	if hasAnnotation(cmd, annotationOffline) {
		load = config.LoadOffline
	}
	loaded, err := load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg = loaded

	logOut := cmd.ErrOrStderr()
	if hasAnnotation(cmd, annotationLogStdout) {
		logOut = cmd.OutOrStdout()
	}
	logging.SetupWriter(logOut, cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())
	return nil
}

func hasAnnotation(cmd *cobra.Command, key string) bool {
	_, ok := cmd.Annotations[key]
	return ok
}
