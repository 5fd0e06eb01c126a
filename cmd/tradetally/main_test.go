package main

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/fyrsmithlabs/tradetally/internal/config"
)

func TestRunIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8084
	cfg.Auth.SessionSecret = config.Secret("session-secret")
	cfg.Storage.SigningSecret = config.Secret("signing-secret")
	cfg.Storage.DatabasePath = filepath.Join(dir, "tradetally.db")
	cfg.Storage.BlobRoot = filepath.Join(dir, "blobs")
	cfg.Extraction.Provider = "disabled"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg)
	}()

	time.Sleep(200 * time.Millisecond)

	resp, err := http.Get("http://127.0.0.1:8084/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	resp, err = http.Get("http://127.0.0.1:8084/api/v1/trades")
	if err != nil {
		t.Fatalf("GET /api/v1/trades failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("GET /api/v1/trades status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shutdown in time")
	}
}
