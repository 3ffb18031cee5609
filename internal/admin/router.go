package admin

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bitmaskhq/migration-api/internal/middleware"
)

// NewRouter creates the admin router. All /api routes sit behind the
// email/access-code gate; the upload endpoint additionally carries its own
// rate limit.
func (h *Handler) NewRouter(limiter *middleware.RateLimiter) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	// Keep accessCode out of debug logs; it is shown to the caller once.
	r.Use(middleware.HTTPLogging(h.logger, []string{
		"message", "email", "role", "level", "uploadName", "fileName",
		"recordCount", "droppedRows", "duplicateRowsInFile",
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Route("/csv", func(r chi.Router) {
			r.With(limiter.Limit("upload", middleware.UploadLimit)).
				Post("/upload", h.HandleUploadCSV)
			r.Get("/uploads", h.HandleListUploads)
			r.Post("/uploads/{id}/rename", h.HandleRenameUpload)
			r.Delete("/uploads/{id}", h.HandleDeleteUpload)
			r.Get("/uploads/{id}/download", h.HandleDownloadUpload)
		})

		r.Get("/analytics", h.HandleAnalytics)

		r.Post("/loglevel", h.HandleSetLogLevel)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireSuperadmin)
			r.Get("/admins", h.HandleListAdmins)
			r.Post("/admins", h.HandleCreateAdmin)
		})
	})

	return r
}
