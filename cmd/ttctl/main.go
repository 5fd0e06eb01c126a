// Package main implements the ttctl CLI for operating a tradetally server.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL of the tradetally server
	serverURL string
	// token is the session token sent as a bearer credential
	token string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ttctl",
	Short: "CLI for tradetally server operations",
	Long: `ttctl is a command-line interface for operating a tradetally server.
It checks health, mints development session tokens, lists trades, shows the
performance overview, signs test webhooks and tails domain events.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "tradetally server URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("TRADETALLY_TOKEN"), "session token (default $TRADETALLY_TOKEN)")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(tradesCmd)
	rootCmd.AddCommand(overviewCmd)
	rootCmd.AddCommand(webhookCmd)
	rootCmd.AddCommand(eventsCmd)
}
