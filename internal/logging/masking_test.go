package logging

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMaskHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{"authorization masked", "Authorization", "Bearer abcdef123456", "Bearer a***"},
		{"access code masked", "X-Access-Code", "SOMELONGACCESSCODE", "SOMELONG***"},
		{"short secret fully masked", "X-Access-Code", "short", "***"},
		{"cookie masked", "Cookie", "session=abcdef123456", "session=***"},
		{"plain header untouched", "Content-Type", "application/json", "application/json"},
		{"case insensitive", "AUTHORIZATION", "Bearer abcdef123456", "Bearer a***"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := MaskHeader(tt.header, tt.value); got != tt.want {
				t.Errorf("MaskHeader(%q, %q) = %q, want %q", tt.header, tt.value, got, tt.want)
			}
		})
	}
}

func TestMaskJSONBodyAllowlist(t *testing.T) {
	t.Parallel()

	body := []byte(`{"oldUsername":"alice","accessCode":"supersecret123"}`)
	out := MaskJSONBody(body, []string{"oldUsername"})

	var result map[string]any
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if result["oldUsername"] != "alice" {
		t.Errorf("allowlisted field = %v, want alice", result["oldUsername"])
	}
	masked, _ := result["accessCode"].(string)
	if strings.Contains(masked, "supersecret123") {
		t.Errorf("accessCode not masked: %q", masked)
	}
	if !strings.HasSuffix(masked, "***") {
		t.Errorf("masked value = %q, want *** suffix", masked)
	}
}

func TestMaskJSONBodyNested(t *testing.T) {
	t.Parallel()

	body := []byte(`{"data":{"trackingId":"BM-ABC-123","secret":"hiddenvalue"}}`)
	out := MaskJSONBody(body, []string{"trackingId"})

	s := string(out)
	if !strings.Contains(s, "BM-ABC-123") {
		t.Errorf("nested allowlisted field was masked: %s", s)
	}
	if strings.Contains(s, "hiddenvalue") {
		t.Errorf("nested secret not masked: %s", s)
	}
}

func TestMaskJSONBodyNilAllowlistDisablesMasking(t *testing.T) {
	t.Parallel()

	body := []byte(`{"secret":"hiddenvalue"}`)
	out := MaskJSONBody(body, nil)
	if string(out) != string(body) {
		t.Errorf("nil allowlist should pass body through, got %s", out)
	}
}

func TestMaskJSONBodyNonJSON(t *testing.T) {
	t.Parallel()

	body := []byte("old username,new username,npub key\n")
	out := MaskJSONBody(body, []string{"anything"})
	if string(out) != string(body) {
		t.Errorf("non-JSON body should pass through, got %s", out)
	}
}

func TestFormatBinaryData(t *testing.T) {
	t.Parallel()

	got := FormatBinaryData([]byte{0xff, 0xfe, 0x00})
	if got != "<binary data, 3 bytes>" {
		t.Errorf("FormatBinaryData = %q", got)
	}
}
