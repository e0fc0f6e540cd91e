package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/evsync/internal/core"
)

var (
	syncQuiet    bool
	syncProgress bool
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "core",
	Short:   "Run a sync once",
	Long: `Run one sync against the configured sources and database and print the
outcome as JSON. The command exits non-zero when the run did not complete.`,
}

var syncAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Write every vehicle in the source, overwriting stored ones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSync(cmd, core.Request{Command: core.CmdSyncAll})
	},
}

var syncLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Insert vehicles that are not stored yet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSync(cmd, core.Request{Command: core.CmdSyncLatest})
	},
}

var syncVehicleCmd = &cobra.Command{
	Use:   "vehicle <id>",
	Short: "Write a single vehicle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd, core.Request{Command: core.CmdSyncVehicle, ID: args[0]})
	},
}

var syncDebugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Fetch and assemble without writing, then report",
	Args:  cobra.NoArgs,
	RunE:  runDebug,
}

func init() {
	syncCmd.PersistentFlags().BoolVarP(&syncQuiet, "quiet", "q", false, "print only the summary message")
	syncCmd.PersistentFlags().BoolVar(&syncProgress, "progress", false, "print stage progress to stderr")
	syncCmd.AddCommand(syncAllCmd, syncLatestCmd, syncVehicleCmd, syncDebugCmd)
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, req core.Request) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if syncProgress {
		stop := followProgress(cmd.ErrOrStderr(), a.service.Events())
		defer stop()
	}

	out := a.service.Sync(cmd.Context(), req)
	if err := printResult(cmd.OutOrStdout(), out.Message, out, syncQuiet); err != nil {
		return err
	}
	if !out.Success {
		if out.Err == nil {
			return fmt.Errorf("%s: %s", req.Command, out.Message)
		}
		return fmt.Errorf("%s: %w", req.Command, out.Err)
	}
	return nil
}

func runDebug(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if syncProgress {
		stop := followProgress(cmd.ErrOrStderr(), a.service.Events())
		defer stop()
	}

	report, runErr := a.service.Debug(cmd.Context())
	if report != nil {
		msg := fmt.Sprintf("%d vehicles, %d rejected rows, %d warnings",
			len(report.IDs), len(report.Rejected), len(report.Warnings))
		if err := printResult(cmd.OutOrStdout(), msg, report, syncQuiet); err != nil {
			return err
		}
	}
	if runErr != nil {
		return fmt.Errorf("debug: %w", runErr)
	}
	return nil
}

// printResult writes v as indented JSON, or only msg when quiet.
func printResult(w io.Writer, msg string, v any, quiet bool) error {
	if quiet {
		_, err := fmt.Fprintln(w, msg)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// followProgress prints events from b to w until the returned func is
// called. The func waits for the printer to finish.
func followProgress(w io.Writer, b *core.Broadcaster) func() {
	events, unsubscribe := b.Subscribe(64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for e := range events {
			fmt.Fprintln(w, formatEvent(e))
		}
	}()

	return func() {
		unsubscribe()
		wg.Wait()
	}
}

func formatEvent(e core.Event) string {
	line := fmt.Sprintf("%-9s %d/%d", e.Stage, e.Done, e.Total)
	if e.Source != "" {
		line += " " + e.Source
	}
	if e.Message != "" {
		line += ": " + e.Message
	}
	return line
}
