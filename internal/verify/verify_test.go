package verify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bitmaskhq/migration-api/internal/identity"
	"github.com/bitmaskhq/migration-api/internal/storage"

	_ "modernc.org/sqlite"
)

const validNpub = "npub1jlyep8ew8l4gp9vl44dv422czapfeue9s3msxdj6uvnverl3yuyqjs8tqf"

func newTestPipeline(t *testing.T) (*Pipeline, *storage.SQLiteStorage) {
	t.Helper()
	s, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return NewPipeline(s, nil), s
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

func TestCheckIdentifierUsername(t *testing.T) {
	t.Parallel()

	p, s := newTestPipeline(t)
	seedAllowlist(t, s)
	ctx := context.Background()

	// Case-insensitive match.
	res, err := p.CheckIdentifier(ctx, "ALICE")
	if err != nil {
		t.Fatalf("CheckIdentifier failed: %v", err)
	}
	if !res.Valid || res.IdentifierType != identity.TypeUsername || res.MatchCount != 1 {
		t.Errorf("unexpected result: %+v", res)
	}

	// Suffix-insensitive match.
	res, err = p.CheckIdentifier(ctx, "bob@bitmask.app")
	if err != nil {
		t.Fatalf("CheckIdentifier failed: %v", err)
	}
	if !res.Valid {
		t.Errorf("expected suffixed identifier to verify: %+v", res)
	}

	// Absent identifier: valid=false, no error.
	res, err = p.CheckIdentifier(ctx, "stranger")
	if err != nil {
		t.Fatalf("CheckIdentifier failed: %v", err)
	}
	if res.Valid {
		t.Error("expected stranger to be invalid")
	}
	if !strings.Contains(res.Message, "not found") {
		t.Errorf("expected not-found message, got %q", res.Message)
	}
}

func TestCheckIdentifierPublicKey(t *testing.T) {
	t.Parallel()

	p, s := newTestPipeline(t)
	seedAllowlist(t, s)
	ctx := context.Background()

	res, err := p.CheckIdentifier(ctx, validNpub)
	if err != nil {
		t.Fatalf("CheckIdentifier failed: %v", err)
	}
	if !res.Valid || res.IdentifierType != identity.TypePublicKey {
		t.Errorf("unexpected result: %+v", res)
	}

	// Malformed npub is a validation error, not a lookup miss.
	var verr *identity.ValidationError
	if _, err := p.CheckIdentifier(ctx, "npub1tooshort"); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

// TestCheckIdentifierIdempotent verifies repeated checks with an unchanged
// allowlist produce identical results.
func TestCheckIdentifierIdempotent(t *testing.T) {
	t.Parallel()

	p, s := newTestPipeline(t)
	seedAllowlist(t, s)
	ctx := context.Background()

	first, err := p.CheckIdentifier(ctx, "alice")
	if err != nil {
		t.Fatalf("CheckIdentifier failed: %v", err)
	}
	second, err := p.CheckIdentifier(ctx, "alice")
	if err != nil {
		t.Fatalf("CheckIdentifier failed: %v", err)
	}
	if first.Valid != second.Valid || first.IdentifierType != second.IdentifierType {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
}

func TestCheckContact(t *testing.T) {
	t.Parallel()

	p, s := newTestPipeline(t)
	seedAllowlist(t, s)
	ctx := context.Background()

	// Leading @ and casing are stripped.
	res, err := p.CheckContact(ctx, "alice", "@AliceTG")
	if err != nil {
		t.Fatalf("CheckContact failed: %v", err)
	}
	if !res.Valid || res.Record == nil {
		t.Errorf("unexpected result: %+v", res)
	}

	// Mismatch reports the expected identifier.
	res, err = p.CheckContact(ctx, "mallory", "alicetg")
	if err != nil {
		t.Fatalf("CheckContact failed: %v", err)
	}
	if res.Valid {
		t.Error("expected mismatch to be invalid")
	}
	if res.ExpectedIdentifier != "alice" {
		t.Errorf("expected alice as expected identifier, got %q", res.ExpectedIdentifier)
	}
	if !strings.Contains(res.Message, "does not match") {
		t.Errorf("expected mismatch message, got %q", res.Message)
	}

	// Unknown handle.
	res, err = p.CheckContact(ctx, "alice", "ghosttg")
	if err != nil {
		t.Fatalf("CheckContact failed: %v", err)
	}
	if res.Valid || !strings.Contains(res.Message, "not found") {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestCheckContactMissingFields(t *testing.T) {
	t.Parallel()

	p, _ := newTestPipeline(t)
	ctx := context.Background()

	var verr *identity.ValidationError

	_, err := p.CheckContact(ctx, "alice", "")
	if !errors.As(err, &verr) || verr.Field != "telegramAccount" {
		t.Errorf("expected telegramAccount validation error, got %v", err)
	}

	_, err = p.CheckContact(ctx, "", "alicetg")
	if !errors.As(err, &verr) || verr.Field != "oldUsername" {
		t.Errorf("expected oldUsername validation error, got %v", err)
	}
}
