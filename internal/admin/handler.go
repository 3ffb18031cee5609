// Package admin implements the admin-scoped HTTP surface: CSV allowlist
// management, analytics, admin accounts, and runtime log level control.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bitmaskhq/migration-api/internal/analytics"
	"github.com/bitmaskhq/migration-api/internal/storage"
)

// Store defines the persistence operations the admin handlers need.
// This interface enables testing with mock implementations.
type Store interface {
	GetAdminByEmail(ctx context.Context, email string) (*storage.Admin, error)
	ListAdmins(ctx context.Context) ([]*storage.Admin, error)
	CreateAdmin(ctx context.Context, email, role, accessCodeHash string) (*storage.Admin, error)

	CreateUpload(ctx context.Context, upload *storage.Upload) error
	GetUpload(ctx context.Context, id string) (*storage.Upload, error)
	ListUploads(ctx context.Context) ([]*storage.Upload, error)
	RenameUpload(ctx context.Context, id, name string) error
	DeleteUpload(ctx context.Context, id string) error

	ReplaceAllowlist(ctx context.Context, uploadedBy, uploadID string, records []storage.AllowlistRecord) (*storage.ReplaceStats, error)
	ListRecordsForUpload(ctx context.Context, uploadID string) ([]*storage.AllowlistRecord, error)
}

// Handler handles admin requests.
type Handler struct {
	storage    Store
	aggregator *analytics.Aggregator
	logLevel   *slog.LevelVar
	logger     *slog.Logger
	devMode    bool
}

// NewHandler creates an admin handler. In dev mode the access-code check is
// skipped and the email header alone authenticates.
// If logger is nil, slog.Default() will be used.
func NewHandler(store Store, aggregator *analytics.Aggregator, logLevel *slog.LevelVar, logger *slog.Logger, devMode bool) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		storage:    store,
		aggregator: aggregator,
		logLevel:   logLevel,
		logger:     logger,
		devMode:    devMode,
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Error("failed to encode JSON response", "error", err)
	}
}
