package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "contextbridge-admin",
	Short: "Maintenance commands for the ContextBridge API",
	Long: `Maintenance commands that run against the configured store.

Configuration is read from the same environment (and .env file) as the API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd, seedAdminCmd, seedCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
