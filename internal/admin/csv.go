package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bitmaskhq/migration-api/internal/csvdata"
	"github.com/bitmaskhq/migration-api/internal/identity"
	"github.com/bitmaskhq/migration-api/internal/storage"
)

// maxUploadSize caps CSV upload bodies at 8 MiB.
const maxUploadSize = 8 << 20

// UploadResponse is the success payload of a CSV upload. Dropped and
// duplicate rows are warnings, not failures: the upload succeeds as long as
// at least one valid row was processed.
type UploadResponse struct {
	Message             string `json:"message"`
	UploadID            string `json:"uploadId"`
	RecordCount         int    `json:"recordCount"`
	DroppedRows         int    `json:"droppedRows"`
	DuplicateRowsInFile int    `json:"duplicateRowsInFile"`
	DuplicatesReplaced  int    `json:"duplicatesReplaced"`
}

// HandleUploadCSV implements POST /api/csv/upload. The CSV can arrive as a
// multipart "file" field or as the raw request body.
func (h *Handler) HandleUploadCSV(w http.ResponseWriter, r *http.Request) {
	admin := AdminFromContext(r.Context())
	if admin == nil {
		WriteError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Not authenticated")
		return
	}

	content, fileName, err := readUploadContent(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	parsed, err := csvdata.Parse(content)
	if err != nil {
		var ferr *csvdata.FormatError
		if errors.As(err, &ferr) {
			WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, ferr.Message)
			return
		}
		h.logger.Error("CSV parse failed", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to parse CSV")
		return
	}
	if len(parsed.Rows) == 0 {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest,
			"No valid rows found in CSV. Each row needs an old username, telegram account, and new username.")
		return
	}

	records := make([]storage.AllowlistRecord, 0, len(parsed.Rows))
	for _, row := range parsed.Rows {
		records = append(records, toAllowlistRecord(row))
	}

	upload := &storage.Upload{
		ID:          uuid.NewString(),
		UploadName:  uploadName(r, fileName),
		FileName:    fileName,
		UploadedBy:  admin.Email,
		UploadedAt:  time.Now(),
		RecordCount: len(records),
	}
	if err := h.storage.CreateUpload(r.Context(), upload); err != nil {
		h.logger.Error("failed to create upload", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to store upload")
		return
	}

	stats, err := h.storage.ReplaceAllowlist(r.Context(), admin.Email, upload.ID, records)
	if err != nil {
		h.logger.Error("failed to replace allowlist", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to store allowlist records")
		return
	}

	h.logger.Info("allowlist uploaded",
		"upload_id", upload.ID,
		"uploaded_by", admin.Email,
		"records", stats.Created,
		"dropped_rows", parsed.Dropped,
		"duplicates_in_file", stats.DuplicatesInFile,
	)

	writeJSON(w, http.StatusOK, UploadResponse{
		Message:             fmt.Sprintf("Upload complete: %d records stored", stats.Created),
		UploadID:            upload.ID,
		RecordCount:         stats.Created,
		DroppedRows:         parsed.Dropped,
		DuplicateRowsInFile: stats.DuplicatesInFile,
		DuplicatesReplaced:  stats.Updated,
	})
}

// readUploadContent extracts the CSV text from a multipart form or the raw
// request body.
func readUploadContent(r *http.Request) (content, fileName string, err error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return "", "", fmt.Errorf("invalid multipart form: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", "", fmt.Errorf("missing file field: %w", err)
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
		if err != nil {
			return "", "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), header.Filename, nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadSize))
	if err != nil {
		return "", "", fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) == 0 {
		return "", "", errors.New("empty request body")
	}
	return string(data), "upload.csv", nil
}

func uploadName(r *http.Request, fileName string) string {
	if name := r.FormValue("name"); name != "" {
		return name
	}
	return fileName
}

// toAllowlistRecord normalizes one parsed row. A legacy identifier that is a
// public-key token fills the npub column; usernames get the usual
// suffix-strip-and-lowercase treatment.
func toAllowlistRecord(row csvdata.Row) storage.AllowlistRecord {
	rec := storage.AllowlistRecord{
		ContactHandle: identity.NormalizeContactHandle(row.ContactHandle),
		OldIdentifier: strings.TrimSpace(row.OldIdentifier),
		NewIdentifier: identity.NormalizeUsername(row.NewIdentifier),
	}
	if idType, err := identity.ClassifyIdentifier(row.OldIdentifier); err == nil && idType == identity.TypePublicKey {
		rec.NpubKey = strings.TrimSpace(row.OldIdentifier)
		rec.OldIdentifierNorm = rec.NpubKey
	} else {
		rec.OldIdentifierNorm = identity.NormalizeUsername(row.OldIdentifier)
	}
	return rec
}

// UploadView is the JSON view of one upload batch.
type UploadView struct {
	ID          string `json:"id"`
	UploadName  string `json:"uploadName"`
	FileName    string `json:"fileName"`
	UploadedBy  string `json:"uploadedBy"`
	UploadedAt  string `json:"uploadedAt"`
	RecordCount int    `json:"recordCount"`
}

// HandleListUploads implements GET /api/csv/uploads, newest first.
func (h *Handler) HandleListUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.storage.ListUploads(r.Context())
	if err != nil {
		h.logger.Error("failed to list uploads", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to list uploads")
		return
	}

	views := make([]UploadView, len(uploads))
	for i, u := range uploads {
		views[i] = UploadView{
			ID:          u.ID,
			UploadName:  u.UploadName,
			FileName:    u.FileName,
			UploadedBy:  u.UploadedBy,
			UploadedAt:  u.UploadedAt.UTC().Format(time.RFC3339),
			RecordCount: u.RecordCount,
		}
	}
	writeJSON(w, http.StatusOK, views)
}

// RenameUploadRequest is the request body for renaming an upload batch.
type RenameUploadRequest struct {
	Name string `json:"name"`
}

// HandleRenameUpload implements POST /api/csv/uploads/{id}/rename.
func (h *Handler) HandleRenameUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RenameUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Name is required")
		return
	}

	err := h.storage.RenameUpload(r.Context(), id, strings.TrimSpace(req.Name))
	if errors.Is(err, storage.ErrNotFound) {
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, "Upload not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to rename upload", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to rename upload")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Upload renamed"})
}

// HandleDeleteUpload implements DELETE /api/csv/uploads/{id}. Allowlist
// records from the batch go with it.
func (h *Handler) HandleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.storage.DeleteUpload(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, "Upload not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to delete upload", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to delete upload")
		return
	}

	h.logger.Info("upload deleted", "upload_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Upload deleted"})
}

// HandleDownloadUpload implements GET /api/csv/uploads/{id}/download,
// returning the batch in the canonical export format.
func (h *Handler) HandleDownloadUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	upload, err := h.storage.GetUpload(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, "Upload not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load upload", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to load upload")
		return
	}

	records, err := h.storage.ListRecordsForUpload(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load upload records", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to load records")
		return
	}

	export := make([]csvdata.Record, len(records))
	for i, rec := range records {
		export[i] = csvdata.Record{
			OldUsername: rec.OldIdentifier,
			NewUsername: rec.NewIdentifier,
			NpubKey:     rec.NpubKey,
		}
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", upload.FileName))
	if _, err := io.WriteString(w, csvdata.Export(export)); err != nil {
		h.logger.Error("failed to write CSV export", "error", err)
	}
}
