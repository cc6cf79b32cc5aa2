package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "bukukas",
		Short:        "Bukukas - subscriber billing and bookkeeping",
		Long:         `Bukukas keeps subscriber billing schedules per fiscal year, per-period totals and the dashboard feed behind the REST API.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newSeedCommand(),
		newImportCommand(),
		newRolloverCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
