package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/tradetally/internal/auth"
	"github.com/fyrsmithlabs/tradetally/internal/billing"
	"github.com/fyrsmithlabs/tradetally/internal/overview"
	"github.com/fyrsmithlabs/tradetally/internal/trade"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestHealthCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	out, err := execute(t, "health", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Server Status:")
	assert.Contains(t, out, "ok")
}

func TestTradesCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/trades", r.URL.Path)
		assert.Equal(t, "Bearer tok_1", r.Header.Get("Authorization"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"trades":[{"id":"t1","symbol":"EURUSD","position":"long","profit_loss":"12.5","created_at":"2026-10-01T09:00:00Z"}]}`))
	}))
	defer srv.Close()

	out, err := execute(t, "trades", "--server", srv.URL, "--token", "tok_1", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "EURUSD")
	assert.Contains(t, out, "+12.50")
}

func TestOverviewCommand_ReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"upgrade_required"}`))
	}))
	defer srv.Close()

	_, err := execute(t, "overview", "--server", srv.URL, "--range", "ytd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "upgrade_required")
}

func TestTokenCommand(t *testing.T) {
	out, err := execute(t, "token", "--user", "user_9", "--secret", "dev-secret", "--ttl", "1h")
	require.NoError(t, err)

	v, err := auth.NewVerifier("dev-secret", "tradetally")
	require.NoError(t, err)
	u, err := v.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "user_9", u.ID)
}

func TestSignWebhookCommand(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"invoice.paid"}`)
	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, payload, 0600))

	out, err := execute(t, "sign-webhook", path, "--secret", "whsec_1")
	require.NoError(t, err)
	header := strings.TrimSpace(out)
	assert.NoError(t, billing.VerifySignature(payload, header, "whsec_1", billing.DefaultTolerance))
}

func TestRenderTrades(t *testing.T) {
	assert.Contains(t, renderTrades(nil), "No trades yet.")

	out := renderTrades([]trade.Trade{
		{Symbol: "XAUUSD", CreatedAt: time.Now()},
		{Symbol: "GBPUSD", ProfitLoss: decimal.NewNullDecimal(decimal.RequireFromString("-3.25")), CreatedAt: time.Now()},
	})
	assert.Contains(t, out, "XAUUSD")
	assert.Contains(t, out, "open")
	assert.Contains(t, out, "-3.25")
}

func TestRenderOverview(t *testing.T) {
	out := renderOverview(overview.Overview{
		Range: overview.RangeAll,
		KPIs:  overview.KPIs{TotalPL: 6, WinRate: 50, TradesCount: 2, AvgPL: 3},
		InstrumentTable: []overview.Row{
			{Key: "EURUSD", Trades: 1, WinRate: 100, TotalPL: 10},
		},
	})
	assert.Contains(t, out, "Overview (all)")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "By instrument")
	assert.Contains(t, out, "EURUSD")
	assert.NotContains(t, out, "By timeframe")
}
