package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain path", "/verify", "/verify"},
		{"uuid segment", "/admin/csv-uploads/6f1c2a3b-4d5e-4f60-8a9b-0c1d2e3f4a5b", "/admin/csv-uploads/:id"},
		{"uuid with suffix", "/admin/csv-uploads/6f1c2a3b-4d5e-4f60-8a9b-0c1d2e3f4a5b/download", "/admin/csv-uploads/:id/download"},
		{"tracking id", "/status/BM-MC4X9K2-A7F3QZ1", "/status/:id"},
		{"numeric segment", "/uploads/42", "/uploads/:id"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := normalizePath(tt.in)
			if got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMiddlewareCapturesStatus(t *testing.T) {
	t.Parallel()

	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest("GET", "/status/BM-MC4X9K2-A7F3QZ1", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestMiddlewareRecoversPanic(t *testing.T) {
	t.Parallel()

	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	req := httptest.NewRequest("GET", "/verify", nil)
	w := httptest.NewRecorder()

	// Must not propagate the panic
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
