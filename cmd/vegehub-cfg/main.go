// Vegehub-cfg is a configuration utility for VegeHub sensor hubs.
//
// It discovers hubs on the LAN, points their upstream reporting at a server,
// drives actuators and keeps a local registry of hubs for the push bridge.
//
// Usage:
//
//	vegehub-cfg [command] [flags]
//
// See 'vegehub-cfg --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/vegetronix/vegehub/internal/logging"
	"github.com/vegetronix/vegehub/internal/ui"
	"github.com/vegetronix/vegehub/internal/vegehub"
	"github.com/vegetronix/vegehub/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(1)
	}
}

// formatError renders hub errors as a failure box with a short title and hints
func formatError(err error) string {
	if vegehub.IsConnectionError(err) || vegehub.IsValidationError(err) {
		return ui.RenderFailure(vegehub.GetShortErrorMessage(err), err, []string{vegehub.GetTroubleshootingHint(err)})
	}
	return fmt.Sprintf("Error: %v", err)
}

var rootCmd = &cobra.Command{
	Use:   "vegehub-cfg",
	Short: "VegeHub Configuration Utility",
	Long: `A standalone utility for configuring VegeHub sensor hubs over the local network.

Provides hub discovery, upstream (server URL / API key) setup, actuator control
and a local registry of hubs used by vegehub-bridge.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel != "" {
			return logging.Initialize(logLevel)
		}
		return logging.InitializeFromEnv()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vegehub-cfg %s\n", version.Full())
	},
}
