package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	httpserver "github.com/fyrsmithlabs/tradetally/internal/http"
	"github.com/fyrsmithlabs/tradetally/internal/overview"
)

// getJSON fetches path from the server and decodes the response into out.
func getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := serverURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check tradetally server health",
	Long: `Check the health status of the tradetally server.

Examples:
  ttctl health
  ttctl health --server http://localhost:9090`,
	RunE: runHealth,
}

func runHealth(cmd *cobra.Command, _ []string) error {
	var resp httpserver.HealthResponse
	if err := getJSON(cmd.Context(), "/health", nil, &resp); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderStatus(resp.Status))
	return nil
}

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List recent trades",
	Long: `List the authenticated user's trades, newest first.

Examples:
  ttctl trades --limit 20
  ttctl trades --from 2026-10-01T00:00:00Z`,
	RunE: runTrades,
}

func init() {
	tradesCmd.Flags().Int("limit", 20, "maximum number of trades")
	tradesCmd.Flags().String("from", "", "earliest creation time (RFC 3339)")
	tradesCmd.Flags().String("to", "", "latest creation time (RFC 3339)")
}

func runTrades(cmd *cobra.Command, _ []string) error {
	q := url.Values{}
	limit, _ := cmd.Flags().GetInt("limit")
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	for _, name := range []string{"from", "to"} {
		if v, _ := cmd.Flags().GetString(name); v != "" {
			q.Set(name, v)
		}
	}

	var resp httpserver.TradeListResponse
	if err := getJSON(cmd.Context(), "/api/v1/trades", q, &resp); err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), renderTrades(resp.Trades))
	return nil
}

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Show the performance overview",
	Long: `Show KPIs and per-instrument performance for a range.
Ranges: 7d, 30d, month, ytd, all. Requires a pro membership.

Examples:
  ttctl overview --range ytd`,
	RunE: runOverview,
}

func init() {
	overviewCmd.Flags().String("range", string(overview.Range30D), "reporting range")
}

func runOverview(cmd *cobra.Command, _ []string) error {
	r, _ := cmd.Flags().GetString("range")
	var ov overview.Overview
	if err := getJSON(cmd.Context(), "/api/v1/overview", url.Values{"range": {r}}, &ov); err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), renderOverview(ov))
	return nil
}
