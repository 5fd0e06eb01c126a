package http_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/tradetally/internal/auth"
	"github.com/fyrsmithlabs/tradetally/internal/billing"
	"github.com/fyrsmithlabs/tradetally/internal/blob"
	httpserver "github.com/fyrsmithlabs/tradetally/internal/http"
	"github.com/fyrsmithlabs/tradetally/internal/logging"
	"github.com/fyrsmithlabs/tradetally/internal/storage/sqlite"
)

// ExampleServer wires the API over a local database and blob directory.
func ExampleServer() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "tradetally-example")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	store, err := sqlite.Open(ctx, filepath.Join(dir, "tradetally.db"))
	if err != nil {
		panic(err)
	}
	defer store.Close()

	blobs, err := blob.New(blob.Config{Root: filepath.Join(dir, "blobs"), Secret: "blob-secret"})
	if err != nil {
		panic(err)
	}
	defer blobs.Close()
	verifier, err := auth.NewVerifier("session-secret", "tradetally")
	if err != nil {
		panic(err)
	}
	svc, err := billing.NewService(billing.ServiceConfig{Customers: store})
	if err != nil {
		panic(err)
	}

	server, err := httpserver.NewServer(logging.NewNop(), nil, httpserver.Deps{
		Store:    store,
		Verifier: verifier,
		Billing:  svc,
		Blobs:    blobs,
	})
	if err != nil {
		panic(err)
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/trades", nil))
	fmt.Println(rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	fmt.Println(rec.Code)
	// Output:
	// 401
	// 200
}
