package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/bitmaskhq/migration-api/internal/storage"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const adminContextKey contextKey = "admin_principal"

// AdminFromContext retrieves the authenticated admin from the request
// context, or nil if the request was not authenticated.
func AdminFromContext(ctx context.Context) *storage.Admin {
	admin, _ := ctx.Value(adminContextKey).(*storage.Admin)
	return admin
}

// AuthMiddleware authenticates admin requests. The identity comes from the
// X-User-Email header; outside dev mode the X-Access-Code header must also
// match the admin's bcrypt access-code hash. The dashboard sits behind a
// trusted reverse proxy that sets the email header from its own session.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := strings.ToLower(strings.TrimSpace(r.Header.Get("X-User-Email")))
		if email == "" {
			WriteErrorWithHint(w, http.StatusUnauthorized, ErrCodeInvalidCredentials,
				"Admin email required",
				"Set the X-User-Email header to your admin email address")
			return
		}

		admin, err := h.storage.GetAdminByEmail(r.Context(), email)
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, http.StatusForbidden, ErrCodeInvalidCredentials,
				"Not an admin account")
			return
		}
		if err != nil {
			h.logger.Error("admin lookup failed", "error", err)
			WriteError(w, http.StatusInternalServerError, ErrCodeInternalError,
				"Internal error")
			return
		}

		if !h.devMode && admin.AccessCodeHash != "" {
			code := r.Header.Get("X-Access-Code")
			if code == "" {
				WriteErrorWithHint(w, http.StatusUnauthorized, ErrCodeInvalidCredentials,
					"Access code required",
					"Set the X-Access-Code header to your access code")
				return
			}
			if bcrypt.CompareHashAndPassword([]byte(admin.AccessCodeHash), []byte(code)) != nil {
				WriteError(w, http.StatusForbidden, ErrCodeInvalidCredentials,
					"Invalid access code")
				return
			}
		}

		ctx := context.WithValue(r.Context(), adminContextKey, admin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSuperadmin is middleware that requires the superadmin role.
// It must be used after AuthMiddleware.
func (h *Handler) RequireSuperadmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin := AdminFromContext(r.Context())
		if admin == nil || admin.Role != storage.RoleSuperadmin {
			WriteErrorWithHint(w, http.StatusForbidden, ErrCodeSuperadminRequired,
				"This endpoint requires a superadmin account",
				"Ask an existing superadmin to grant you the superadmin role")
			return
		}
		next.ServeHTTP(w, r)
	})
}
