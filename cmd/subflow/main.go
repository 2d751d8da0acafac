package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/orris-inc/subflow/internal/interfaces/cli/migrate"
	"github.com/orris-inc/subflow/internal/interfaces/cli/notify"
	"github.com/orris-inc/subflow/internal/interfaces/cli/server"
	"github.com/orris-inc/subflow/internal/interfaces/cli/worker"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "subflow",
		Short: "Subflow - subscription billing event engine",
		Long:  `Subflow applies billing provider webhooks to subscriptions exactly once and runs the maintenance and email jobs around them.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		worker.NewCommand(),
		migrate.NewCommand(),
		notify.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
