package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/evsync/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate [command]",
	GroupID: "management",
	Short:   "Apply or inspect database migrations",
	Long: fmt.Sprintf(`Run a goose migration command against DATABASE_URL.

Commands: %s (default: up).`, strings.Join(store.MigrationCommands, ", ")),
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: store.MigrationCommands,
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	command := "up"
	if len(args) == 1 {
		command = args[0]
	}

	// Migrations are explicit here, so skip the automatic "up".
	dbCfg := *cfg
	dbCfg.Database.AutoMigrate = false

	pool, err := connect(cmd.Context(), &dbCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return store.Migrate(cmd.Context(), pool, command)
}
