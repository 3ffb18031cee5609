// Package api implements the public HTTP surface of the migration API:
// verification, submission, and status tracking.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bitmaskhq/migration-api/internal/identity"
	"github.com/bitmaskhq/migration-api/internal/metrics"
	"github.com/bitmaskhq/migration-api/internal/migrate"
	"github.com/bitmaskhq/migration-api/internal/storage"
	"github.com/bitmaskhq/migration-api/internal/verify"
)

// Pinger reports storage liveness for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler handles public migration requests.
type Handler struct {
	pipeline *verify.Pipeline
	service  *migrate.Service
	pinger   Pinger
	logger   *slog.Logger
}

// NewHandler creates a public API handler.
// If logger is nil, slog.Default() will be used.
func NewHandler(pipeline *verify.Pipeline, service *migrate.Service, pinger Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		pipeline: pipeline,
		service:  service,
		pinger:   pinger,
		logger:   logger,
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log encoding errors but don't fail the response
		slog.Default().Error("failed to encode JSON response", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// attemptPayload is the JSON view of a migration attempt record.
type attemptPayload struct {
	OldUsername   string `json:"oldUsername"`
	NpubKey       string `json:"npubKey,omitempty"`
	NewUsername   string `json:"newUsername"`
	AttemptCount  int    `json:"attemptCount"`
	TrackingID    string `json:"trackingId"`
	SubmittedAt   string `json:"submittedAt"`
	LastUpdatedAt string `json:"lastUpdatedAt"`
}

func toAttemptPayload(rec *storage.MigrationAttempt) attemptPayload {
	return attemptPayload{
		OldUsername:   rec.OldUsername,
		NpubKey:       rec.NpubKey,
		NewUsername:   rec.CurrentNewUsername,
		AttemptCount:  rec.AttemptCount,
		TrackingID:    rec.TrackingID,
		SubmittedAt:   rec.SubmittedAt.UTC().Format(time.RFC3339),
		LastUpdatedAt: rec.LastUpdatedAt.UTC().Format(time.RFC3339),
	}
}

type verifyIdentifierRequest struct {
	Identifier string `json:"identifier"`
}

type verifyIdentifierResponse struct {
	Valid          bool   `json:"valid"`
	Message        string `json:"message"`
	IdentifierType string `json:"identifierType,omitempty"`
	MatchCount     int    `json:"matchCount,omitempty"`
}

// HandleVerifyIdentifier implements POST /verify-old-username. An identifier
// absent from the allowlist is a 200 with valid:false, not a 404, so the
// check stays idempotent and cacheable. Malformed identifiers are a 400.
func (h *Handler) HandleVerifyIdentifier(w http.ResponseWriter, r *http.Request) {
	var req verifyIdentifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := h.pipeline.CheckIdentifier(r.Context(), req.Identifier)
	if err != nil {
		var verr *identity.ValidationError
		if errors.As(err, &verr) {
			metrics.RecordVerification("identifier", "invalid")
			writeJSON(w, http.StatusBadRequest, verifyIdentifierResponse{
				Valid:   false,
				Message: verr.Message,
			})
			return
		}
		h.logger.Error("identifier verification failed", "error", err)
		metrics.RecordVerification("identifier", "error")
		writeError(w, http.StatusInternalServerError, "verification temporarily unavailable")
		return
	}

	outcome := "invalid"
	if result.Valid {
		outcome = "valid"
	}
	metrics.RecordVerification("identifier", outcome)

	writeJSON(w, http.StatusOK, verifyIdentifierResponse{
		Valid:          result.Valid,
		Message:        result.Message,
		IdentifierType: string(result.IdentifierType),
		MatchCount:     result.MatchCount,
	})
}

type verifyContactRequest struct {
	OldUsername     string `json:"oldUsername"`
	TelegramAccount string `json:"telegramAccount"`
}

type verifyContactResponse struct {
	Valid            bool            `json:"valid"`
	Message          string          `json:"message"`
	ExpectedUsername string          `json:"expectedUsername,omitempty"`
	Data             *attemptContext `json:"data,omitempty"`
}

// attemptContext is the allowlist context returned with a successful
// contact verification so the client can pre-fill the submission form.
type attemptContext struct {
	OldUsername string `json:"oldUsername"`
	NewUsername string `json:"newUsername,omitempty"`
	NpubKey     string `json:"npubKey,omitempty"`
}

// HandleVerifyContact implements POST /verify. Missing fields are a 400; a
// mismatching or unknown handle is a 200 with valid:false.
func (h *Handler) HandleVerifyContact(w http.ResponseWriter, r *http.Request) {
	var req verifyContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := h.pipeline.CheckContact(r.Context(), req.OldUsername, req.TelegramAccount)
	if err != nil {
		var verr *identity.ValidationError
		if errors.As(err, &verr) {
			metrics.RecordVerification("contact", "invalid")
			writeJSON(w, http.StatusBadRequest, verifyContactResponse{
				Valid:   false,
				Message: verr.Message,
			})
			return
		}
		h.logger.Error("contact verification failed", "error", err)
		metrics.RecordVerification("contact", "error")
		writeError(w, http.StatusInternalServerError, "verification temporarily unavailable")
		return
	}

	resp := verifyContactResponse{
		Valid:            result.Valid,
		Message:          result.Message,
		ExpectedUsername: result.ExpectedIdentifier,
	}
	if result.Valid && result.Record != nil {
		resp.Data = &attemptContext{
			OldUsername: result.Record.OldIdentifier,
			NewUsername: result.Record.NewIdentifier,
			NpubKey:     result.Record.NpubKey,
		}
	}

	outcome := "invalid"
	if result.Valid {
		outcome = "valid"
	}
	metrics.RecordVerification("contact", outcome)

	writeJSON(w, http.StatusOK, resp)
}

type updateRequest struct {
	OldUsername     string `json:"oldUsername"`
	TelegramAccount string `json:"telegramAccount"`
	NewUsername     string `json:"newUsername"`
}

type updateResponse struct {
	Valid             bool            `json:"valid"`
	Message           string          `json:"message"`
	Data              *attemptPayload `json:"data,omitempty"`
	AttemptNumber     int             `json:"attemptNumber,omitempty"`
	RemainingAttempts *int            `json:"remainingAttempts,omitempty"`
	ExpectedUsername  string          `json:"expectedUsername,omitempty"`
	Field             string          `json:"field,omitempty"`
}

// HandleUpdate implements POST /update, the submission endpoint. Outcomes:
//
//   - accepted: 200 with the stored record, attempt number, and remaining count
//   - missing/malformed field: 400 with a field-specific message
//   - contact handle mismatch: 200 with valid:false and expectedUsername
//   - new username already claimed elsewhere: 409
//   - attempt ceiling reached: 200 with valid:false and remainingAttempts 0
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sub, err := h.service.Submit(r.Context(), req.OldUsername, req.TelegramAccount, req.NewUsername)
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}

	metrics.RecordSubmission("accepted")
	payload := toAttemptPayload(sub.Record)
	remaining := sub.RemainingAttempts
	writeJSON(w, http.StatusOK, updateResponse{
		Valid:             true,
		Message:           "Username updated successfully. Use your tracking ID to check progress.",
		Data:              &payload,
		AttemptNumber:     sub.AttemptNumber,
		RemainingAttempts: &remaining,
	})
}

func (h *Handler) writeSubmitError(w http.ResponseWriter, err error) {
	var verr *identity.ValidationError
	var merr *migrate.MismatchError

	switch {
	case errors.As(err, &verr):
		metrics.RecordSubmission("rejected")
		writeJSON(w, http.StatusBadRequest, updateResponse{
			Valid:   false,
			Message: verr.Message,
			Field:   verr.Field,
		})
	case errors.As(err, &merr):
		metrics.RecordSubmission("rejected")
		writeJSON(w, http.StatusOK, updateResponse{
			Valid:            false,
			Message:          merr.Message,
			ExpectedUsername: merr.ExpectedIdentifier,
		})
	case errors.Is(err, migrate.ErrConflict):
		metrics.RecordSubmission("conflict")
		writeJSON(w, http.StatusConflict, updateResponse{
			Valid:   false,
			Message: "This username is already taken by another migration. Please choose a different one.",
		})
	case errors.Is(err, migrate.ErrAttemptLimit):
		metrics.RecordSubmission("attempt_limit")
		zero := 0
		writeJSON(w, http.StatusOK, updateResponse{
			Valid:             false,
			Message:           "Maximum update attempts (3) reached. No further changes are possible for this username.",
			RemainingAttempts: &zero,
		})
	default:
		metrics.RecordSubmission("error")
		h.logger.Error("submission failed", "error", err)
		writeError(w, http.StatusInternalServerError, "submission temporarily unavailable")
	}
}

type statusRequest struct {
	TrackingID string `json:"trackingId"`
}

type statusResponse struct {
	Status string         `json:"status"`
	Data   attemptPayload `json:"data"`
}

// HandleStatusCheck implements POST /status/check. Unknown tracking IDs are
// a 404: unlike identifier verification there is nothing cacheable about a
// bad token.
func (h *Handler) HandleStatusCheck(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TrackingID == "" {
		writeError(w, http.StatusBadRequest, "trackingId is required")
		return
	}

	result, err := h.service.Status(r.Context(), req.TrackingID)
	if errors.Is(err, migrate.ErrNotFound) {
		writeError(w, http.StatusNotFound, "tracking ID not found")
		return
	}
	if err != nil {
		h.logger.Error("status lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "status lookup temporarily unavailable")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status: result.Status,
		Data:   toAttemptPayload(result.Record),
	})
}

// HandleHealth reports process liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady reports readiness: the process is up and the database answers.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.pinger.Ping(ctx); err != nil {
		h.logger.Error("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
