// Package testenv provides a reusable in-process test environment for the
// migration API. It wires the full stack (storage, verification, submission,
// public and admin routers) onto an httptest server with automatic cleanup,
// so scenario tests exercise the same request paths as production.
package testenv

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/bitmaskhq/migration-api/internal/admin"
	"github.com/bitmaskhq/migration-api/internal/analytics"
	"github.com/bitmaskhq/migration-api/internal/api"
	"github.com/bitmaskhq/migration-api/internal/middleware"
	"github.com/bitmaskhq/migration-api/internal/migrate"
	"github.com/bitmaskhq/migration-api/internal/storage"
	"github.com/bitmaskhq/migration-api/internal/verify"

	_ "modernc.org/sqlite"
)

// AdminEmail is the admin identity seeded by Setup.
const AdminEmail = "ops@example.com"

// TestEnv is one fully wired migration API on an in-memory database.
type TestEnv struct {
	// URL is the base URL of the running server.
	URL string
	// Storage is the backing store, for direct state assertions.
	Storage *storage.SQLiteStorage
}

// Setup starts a complete in-process server in dev mode with one seeded
// admin. Cleanup is registered automatically.
func Setup(t *testing.T) *TestEnv {
	t.Helper()

	s, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if _, err := s.CreateAdmin(context.Background(), AdminEmail, storage.RoleSuperadmin, ""); err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := middleware.NewRateLimiter()
	t.Cleanup(limiter.Close)

	pipeline := verify.NewPipeline(s, logger)
	service := migrate.NewService(s, pipeline, logger)
	aggregator := analytics.NewAggregator(s)

	publicHandler := api.NewHandler(pipeline, service, s, logger)
	adminHandler := admin.NewHandler(s, aggregator, new(slog.LevelVar), logger, true)

	root := chi.NewRouter()
	root.Mount("/admin", adminHandler.NewRouter(limiter))
	root.Mount("/", api.NewRouter(publicHandler, limiter, logger))

	srv := httptest.NewServer(root)
	t.Cleanup(srv.Close)

	return &TestEnv{URL: srv.URL, Storage: s}
}

// PostJSON sends a JSON POST and returns the response.
func (e *TestEnv) PostJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	resp, err := http.Post(e.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// UploadCSV uploads raw CSV text through the admin API as the seeded admin.
func (e *TestEnv) UploadCSV(t *testing.T, csv string) *http.Response {
	t.Helper()
	req, err := http.NewRequest("POST", e.URL+"/admin/api/csv/upload", bytes.NewReader([]byte(csv)))
	if err != nil {
		t.Fatalf("failed to build upload request: %v", err)
	}
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("X-User-Email", AdminEmail)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// AdminGet sends a GET to an admin path as the seeded admin.
func (e *TestEnv) AdminGet(t *testing.T, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest("GET", e.URL+path, nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("X-User-Email", AdminEmail)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// Decode unmarshals a JSON response body into a map.
func Decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("response is not JSON: %v\nbody: %s", err, data)
	}
	return result
}
