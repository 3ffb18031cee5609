package admin

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bitmaskhq/migration-api/internal/storage"
)

// bcryptCost for access code hashing.
const bcryptCost = 12

// AdminView is the JSON view of one admin principal. The access code hash
// never leaves the server.
type AdminView struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// CreateAdminRequest is the request body for POST /api/admins.
type CreateAdminRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// CreateAdminResponse includes the access code (shown only once).
type CreateAdminResponse struct {
	Admin      AdminView `json:"admin"`
	AccessCode string    `json:"accessCode"` // Plain code, shown once
}

// HandleListAdmins returns all admin principals.
// GET /api/admins
func (h *Handler) HandleListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.storage.ListAdmins(r.Context())
	if err != nil {
		h.logger.Error("failed to list admins", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to list admins")
		return
	}

	views := make([]AdminView, len(admins))
	for i, a := range admins {
		views[i] = toAdminView(a)
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleCreateAdmin creates a new admin principal and returns its one-time
// access code.
// POST /api/admins
// Body: {"email": "...", "role": "admin|superadmin"}
func (h *Handler) HandleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req CreateAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "A valid email is required")
		return
	}
	role := req.Role
	if role == "" {
		role = storage.RoleAdmin
	}
	if role != storage.RoleAdmin && role != storage.RoleSuperadmin {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest,
			fmt.Sprintf("Invalid role %q (must be: admin, superadmin)", req.Role))
		return
	}

	code, hash, err := newAccessCode()
	if err != nil {
		h.logger.Error("failed to generate access code", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to generate access code")
		return
	}

	created, err := h.storage.CreateAdmin(r.Context(), email, role, hash)
	if errors.Is(err, storage.ErrDuplicate) {
		WriteError(w, http.StatusConflict, ErrCodeDuplicate, "An admin with this email already exists")
		return
	}
	if err != nil {
		h.logger.Error("failed to create admin", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to create admin")
		return
	}

	h.logger.Info("admin created",
		"email", created.Email,
		"role", created.Role,
		"created_by", AdminFromContext(r.Context()).Email,
	)

	writeJSON(w, http.StatusCreated, CreateAdminResponse{
		Admin:      toAdminView(created),
		AccessCode: code,
	})
}

func toAdminView(a *storage.Admin) AdminView {
	return AdminView{
		ID:        a.ID,
		Email:     a.Email,
		Role:      a.Role,
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// newAccessCode generates a random access code and its bcrypt hash.
func newAccessCode() (code, hash string, err error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	code = hex.EncodeToString(buf)

	hashed, err := bcrypt.GenerateFromPassword([]byte(code), bcryptCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash access code: %w", err)
	}
	return code, string(hashed), nil
}

// Bootstrap ensures a superadmin exists for the given email. Used at startup
// so a fresh deployment has exactly one way in. Returns the one-time access
// code when a new account was created, empty string if the admin already
// existed.
func Bootstrap(ctx context.Context, store Store, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", nil
	}

	_, err := store.GetAdminByEmail(ctx, email)
	if err == nil {
		return "", nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("bootstrap admin lookup failed: %w", err)
	}

	code, hash, err := newAccessCode()
	if err != nil {
		return "", err
	}
	if _, err := store.CreateAdmin(ctx, email, storage.RoleSuperadmin, hash); err != nil {
		return "", fmt.Errorf("bootstrap admin creation failed: %w", err)
	}
	return code, nil
}
