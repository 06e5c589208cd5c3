package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "deskctl",
		Short: "Repair desk operator tools",
		Long:  `deskctl issues access tokens for staff and applies the database schema.`,
	}

	rootCmd.AddCommand(
		newTokenCommand(),
		newMigrateCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
