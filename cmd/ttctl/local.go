package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/tradetally/internal/auth"
	"github.com/fyrsmithlabs/tradetally/internal/billing"
	"github.com/fyrsmithlabs/tradetally/internal/events"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development session token",
	Long: `Mint a session token signed with the server's session secret.

Examples:
  TRADETALLY_AUTH_SESSION_SECRET=dev ttctl token --user user_123 --email a@b.c
  export TRADETALLY_TOKEN=$(ttctl token --user user_123)`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().String("user", "", "user id (required)")
	tokenCmd.Flags().String("first-name", "", "first name claim")
	tokenCmd.Flags().String("email", "", "email claim")
	tokenCmd.Flags().String("issuer", "tradetally", "token issuer")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	tokenCmd.Flags().String("secret", "", "session secret (default $TRADETALLY_AUTH_SESSION_SECRET)")
	_ = tokenCmd.MarkFlagRequired("user")
}

func runToken(cmd *cobra.Command, _ []string) error {
	user, _ := cmd.Flags().GetString("user")
	firstName, _ := cmd.Flags().GetString("first-name")
	email, _ := cmd.Flags().GetString("email")
	issuer, _ := cmd.Flags().GetString("issuer")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	secret, _ := cmd.Flags().GetString("secret")
	if secret == "" {
		secret = os.Getenv("TRADETALLY_AUTH_SESSION_SECRET")
	}

	tok, err := auth.IssueToken(secret, issuer, auth.User{ID: user, FirstName: firstName, Email: email}, ttl)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}

var webhookCmd = &cobra.Command{
	Use:   "sign-webhook [file]",
	Short: "Sign a Stripe webhook payload for local testing",
	Long: `Print a Stripe-Signature header value for a payload read from a file
or stdin.

Examples:
  ttctl sign-webhook event.json
  cat event.json | ttctl sign-webhook -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSignWebhook,
}

func init() {
	webhookCmd.Flags().String("secret", "", "webhook secret (default $STRIPE_WEBHOOK_SECRET)")
}

func runSignWebhook(cmd *cobra.Command, args []string) error {
	var payload []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		payload, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		payload, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
	}
	if len(payload) == 0 {
		return errors.New("no payload to sign")
	}

	secret, _ := cmd.Flags().GetString("secret")
	if secret == "" {
		secret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	}
	if secret == "" {
		return errors.New("webhook secret is required")
	}

	fmt.Fprintln(cmd.OutOrStdout(), billing.SignatureHeaderValue(payload, secret, time.Now()))
	return nil
}

var eventsCmd = &cobra.Command{
	Use:   "events [pattern]",
	Short: "Tail domain events from NATS",
	Long: `Print tradetally domain events as they are published. The pattern is
matched under the tradetally. subject prefix and defaults to all events.

Examples:
  ttctl events
  ttctl events 'trade.*' --nats-url nats://localhost:4222`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().String("nats-url", nats.DefaultURL, "NATS server URL")
}

func runEvents(cmd *cobra.Command, args []string) error {
	natsURL, _ := cmd.Flags().GetString("nats-url")
	pattern := ""
	if len(args) == 1 {
		pattern = args[0]
	}

	nc, err := nats.Connect(natsURL, nats.Name("ttctl"))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", natsURL, err)
	}
	defer nc.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	err = events.Subscribe(ctx, nc, pattern, func(e events.Event) {
		fmt.Fprintln(out, renderEvent(e))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
