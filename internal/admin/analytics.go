package admin

import (
	"net/http"
)

// HandleAnalytics implements GET /api/analytics. Superadmins see figures for
// the whole campaign; regular admins only for identifiers from their own
// uploads.
func (h *Handler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	admin := AdminFromContext(r.Context())
	if admin == nil {
		WriteError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Not authenticated")
		return
	}

	data, err := h.aggregator.ForAdmin(r.Context(), admin.Email)
	if err != nil {
		h.logger.Error("failed to aggregate analytics", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to compute analytics")
		return
	}
	writeJSON(w, http.StatusOK, data)
}
