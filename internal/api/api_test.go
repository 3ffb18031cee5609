package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bitmaskhq/migration-api/internal/middleware"
	"github.com/bitmaskhq/migration-api/internal/migrate"
	"github.com/bitmaskhq/migration-api/internal/storage"
	"github.com/bitmaskhq/migration-api/internal/verify"

	_ "modernc.org/sqlite"
)

const validNpub = "npub1jlyep8ew8l4gp9vl44dv422czapfeue9s3msxdj6uvnverl3yuyqjs8tqf"

func newTestHandler(t *testing.T) (*Handler, *storage.SQLiteStorage) {
	t.Helper()
	s, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	pipeline := verify.NewPipeline(s, nil)
	service := migrate.NewService(s, pipeline, nil)
	return NewHandler(pipeline, service, s, nil), s
}

func seedAllowlist(t *testing.T, s *storage.SQLiteStorage) {
	t.Helper()
	_, err := s.ReplaceAllowlist(context.Background(), "admin@example.com", "", []storage.AllowlistRecord{
		{ContactHandle: "alicetg", OldIdentifier: "alice", OldIdentifierNorm: "alice", NewIdentifier: "alice2", NpubKey: validNpub},
		{ContactHandle: "bobtg", OldIdentifier: "Bob@bitmask.app", OldIdentifierNorm: "bob", NewIdentifier: "bob2"},
	})
	if err != nil {
		t.Fatalf("failed to seed allowlist: %v", err)
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("response is not JSON: %v\nbody: %s", err, w.Body.String())
	}
	return result
}

func TestVerifyIdentifierKnownUsername(t *testing.T) {
	t.Parallel()

	h, s := newTestHandler(t)
	seedAllowlist(t, s)

	w := postJSON(t, h.HandleVerifyIdentifier, "/verify-old-username", map[string]string{"identifier": "ALICE"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["valid"] != true {
		t.Errorf("valid = %v, want true", body["valid"])
	}
	if body["identifierType"] != "username" {
		t.Errorf("identifierType = %v, want username", body["identifierType"])
	}
}

func TestVerifyIdentifierUnknownIs200Invalid(t *testing.T) {
	t.Parallel()

	h, s := newTestHandler(t)
	seedAllowlist(t, s)

	w := postJSON(t, h.HandleVerifyIdentifier, "/verify-old-username", map[string]string{"identifier": "stranger"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for unknown identifier", w.Code)
	}

	body := decodeBody(t, w)
	if body["valid"] != false {
		t.Errorf("valid = %v, want false", body["valid"])
	}
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "not found") {
		t.Errorf("message = %q, want not-found explanation", msg)
	}
}

func TestVerifyIdentifierMalformedIs400(t *testing.T) {
	t.Parallel()

	h, s := newTestHandler(t)
	seedAllowlist(t, s)

	// Wrong-length public key token.
	w := postJSON(t, h.HandleVerifyIdentifier, "/verify-old-username", map[string]string{"identifier": "npub1tooshort"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for malformed key; body: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["valid"] != false {
		t.Errorf("valid = %v, want false", body["valid"])
	}
}

func TestVerifyIdentifierPublicKey(t *testing.T) {
	t.Parallel()

	h, s := newTestHandler(t)
	seedAllowlist(t, s)

	w := postJSON(t, h.HandleVerifyIdentifier, "/verify-old-username", map[string]string{"identifier": validNpub})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	body := decodeBody(t, w)
	if body["valid"] != true || body["identifierType"] != "npubKey" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestVerifyContactMatch(t *testing.T) {
	t.Parallel()

	h, s := newTestHandler(t)
	seedAllowlist(t, s)

	w := postJSON(t, h.HandleVerifyContact, "/verify", map[string]string{
		"oldUsername":     "alice",
		"telegramAccount": "@alicetg",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["valid"] != true {
		t.Fatalf("valid = %v, want true; body: %v", body["valid"], body)
	}
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data payload, got %v", body)
	}
	if data["oldUsername"] != "alice" {
		t.Errorf("data.oldUsername = %v, want alice", data["oldUsername"])
	}
}

func TestVerifyContactMismatchReportsExpected(t *testing.T) {
	t.Parallel()

	h, s := newTestHandler(t)
	seedAllowlist(t, s)

	w := postJSON(t, h.HandleVerifyContact, "/verify", map[string]string{
		"oldUsername":     "bob",
		"telegramAccount": "alicetg",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["valid"] != false {
		t.Fatalf("valid = %v, want false", body["valid"])
	}
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "does not match") {
		t.Errorf("message = %q, want mismatch explanation", msg)
	}
	if body["expectedUsername"] != "alice" {
		t.Errorf("expectedUsername = %v, want alice", body["expectedUsername"])
	}
}

func TestVerifyContactMissingFieldIs400(t *testing.T) {
	t.Parallel()

	h, s := newTestHandler(t)
	seedAllowlist(t, s)

	w := postJSON(t, h.HandleVerifyContact, "/verify", map[string]string{"oldUsername": "alice"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestUpdateHappyPath(t *testing.T) {
	t.Parallel()

	h, s := newTestHandler(t)
	seedAllowlist(t, s)

	w := postJSON(t, h.HandleUpdate, "/update", map[string]string{
		"oldUsername":     "alice",
		"telegramAccount": "alicetg",
		"newUsername":     "alice2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["valid"] != true {
		t.Fatalf("valid = %v, want true; body: %v", body["valid"], body)
	}
	if body["attemptNumber"] != float64(1) {
		t.Errorf("attemptNumber = %v, want 1", body["attemptNumber"])
	}
	if body["remainingAttempts"] != float64(2) {
		t.Errorf("remainingAttempts = %v, want 2", body["remainingAttempts"])
	}

	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data payload, got %v", body)
	}
	trackingID, _ := data["trackingId"].(string)
	if !strings.HasPrefix(trackingID, "BM-") {
		t.Errorf("trackingId = %q, want BM- prefix", trackingID)
	}
}

func TestUpdateAttemptCeiling(t *testing.T) {
	t.Parallel()

	h, s := newTestHandler(t)
	seedAllowlist(t, s)

	submit := func(newName string) *httptest.ResponseRecorder {
		return postJSON(t, h.HandleUpdate, "/update", map[string]string{
			"oldUsername":     "alice",
			"telegramAccount": "alicetg",
			"newUsername":     newName,
		})
	}

	for i, name := range []string{"alice2", "alice3", "alice4"} {
		w := submit(name)
		if w.Code != http.StatusOK {
			t.Fatalf("attempt %d: status = %d, want 200; body: %s", i+1, w.Code, w.Body.String())
		}
		if decodeBody(t, w)["valid"] != true {
			t.Fatalf("attempt %d rejected: %s", i+1, w.Body.String())
		}
	}

	w := submit("alice5")
	if w.Code != http.StatusOK {
		t.Fatalf("fourth attempt status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["valid"] != false {
		t.Fatalf("fourth attempt should be rejected: %v", body)
	}
	if body["remainingAttempts"] != float64(0) {
		t.Errorf("remainingAttempts = %v, want 0", body["remainingAttempts"])
	}
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "Maximum update attempts") {
		t.Errorf("message = %q, want terminal attempt message", msg)
	}
}

func TestUpdateConflictIs409(t *testing.T) {
	t.Parallel()

	h, s := newTestHandler(t)
	seedAllowlist(t, s)

	w := postJSON(t, h.HandleUpdate, "/update", map[string]string{
		"oldUsername":     "alice",
		"telegramAccount": "alicetg",
		"newUsername":     "shiny",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("seed submission failed: %s", w.Body.String())
	}

	w = postJSON(t, h.HandleUpdate, "/update", map[string]string{
		"oldUsername":     "bob",
		"telegramAccount": "bobtg",
		"newUsername":     "shiny",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409; body: %s", w.Code, w.Body.String())
	}
}

func TestUpdateMissingFieldIs400(t *testing.T) {
	t.Parallel()

	h, s := newTestHandler(t)
	seedAllowlist(t, s)

	w := postJSON(t, h.HandleUpdate, "/update", map[string]string{
		"oldUsername":     "alice",
		"telegramAccount": "alicetg",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if decodeBody(t, w)["field"] != "newUsername" {
		t.Errorf("field = %v, want newUsername", decodeBody(t, w)["field"])
	}
}

func TestStatusCheckRoundTrip(t *testing.T) {
	t.Parallel()

	h, s := newTestHandler(t)
	seedAllowlist(t, s)

	w := postJSON(t, h.HandleUpdate, "/update", map[string]string{
		"oldUsername":     "alice",
		"telegramAccount": "alicetg",
		"newUsername":     "alice2",
	})
	data := decodeBody(t, w)["data"].(map[string]any)
	trackingID := data["trackingId"].(string)

	w = postJSON(t, h.HandleStatusCheck, "/status/check", map[string]string{"trackingId": trackingID})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["status"] != "pending" {
		t.Errorf("status = %v, want pending for fresh submission", body["status"])
	}
	got := body["data"].(map[string]any)
	if got["trackingId"] != trackingID {
		t.Errorf("data.trackingId = %v, want %v", got["trackingId"], trackingID)
	}
}

func TestStatusCheckUnknownIs404(t *testing.T) {
	t.Parallel()

	h, s := newTestHandler(t)
	seedAllowlist(t, s)

	w := postJSON(t, h.HandleStatusCheck, "/status/check", map[string]string{"trackingId": "BM-NOPE-NOPE"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h.HandleHealth(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}

	req = httptest.NewRequest("GET", "/ready", nil)
	w = httptest.NewRecorder()
	h.HandleReady(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("ready status = %d, want 200", w.Code)
	}
}

func TestRouterWiring(t *testing.T) {
	t.Parallel()

	h, s := newTestHandler(t)
	seedAllowlist(t, s)

	limiter := middleware.NewRateLimiter()
	t.Cleanup(limiter.Close)
	router := NewRouter(h, limiter, slog.New(slog.NewTextHandler(io.Discard, nil)))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/verify-old-username", "application/json",
		strings.NewReader(`{"identifier":"alice"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	resp2, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp2.StatusCode)
	}
}
