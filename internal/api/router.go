package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bitmaskhq/migration-api/internal/middleware"
)

// Body fields safe to keep readable in debug logs. Everything else is
// masked.
var logAllowlist = []string{
	"identifier", "oldUsername", "newUsername", "trackingId",
	"valid", "message", "status", "attemptNumber", "remainingAttempts",
}

// NewRouter creates a Chi router with all public endpoints. The limiter is
// shared with the admin router so upload limits apply process-wide.
func NewRouter(handler *Handler, limiter *middleware.RateLimiter, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.HTTPLogging(logger, logAllowlist))
	r.Use(middleware.MaxBodySize(64 * 1024))

	r.Group(func(r chi.Router) {
		r.Use(limiter.Limit("verification", middleware.VerificationLimit))
		r.Post("/verify-old-username", handler.HandleVerifyIdentifier)
		r.Post("/verify", handler.HandleVerifyContact)
	})

	r.Group(func(r chi.Router) {
		r.Use(limiter.Limit("submission", middleware.SubmissionLimit))
		r.Post("/update", handler.HandleUpdate)
	})

	r.Group(func(r chi.Router) {
		r.Use(limiter.Limit("status", middleware.StatusLimit))
		r.Post("/status/check", handler.HandleStatusCheck)
	})

	r.Get("/health", handler.HandleHealth)
	r.Get("/ready", handler.HandleReady)

	return r
}
