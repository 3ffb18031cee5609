package storage

import (
	"context"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

func TestCreateAdmin(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	ctx := context.Background()

	admin, err := s.CreateAdmin(ctx, "Root@Example.com", RoleSuperadmin, "")
	if err != nil {
		t.Fatalf("CreateAdmin failed: %v", err)
	}
	if admin.Email != "root@example.com" {
		t.Errorf("expected lowercased email, got %q", admin.Email)
	}
	if admin.Role != RoleSuperadmin {
		t.Errorf("expected superadmin role, got %q", admin.Role)
	}

	// Duplicate email, any casing.
	if _, err := s.CreateAdmin(ctx, "ROOT@example.com", RoleAdmin, ""); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	// Unknown roles are rejected.
	if _, err := s.CreateAdmin(ctx, "other@example.com", "owner", ""); err == nil {
		t.Error("expected invalid role to be rejected")
	}
}

func TestGetAdminByEmail(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	ctx := context.Background()

	if _, err := s.CreateAdmin(ctx, "ops@example.com", RoleAdmin, "hash123"); err != nil {
		t.Fatalf("CreateAdmin failed: %v", err)
	}

	admin, err := s.GetAdminByEmail(ctx, "  OPS@Example.COM ")
	if err != nil {
		t.Fatalf("GetAdminByEmail failed: %v", err)
	}
	if admin.AccessCodeHash != "hash123" {
		t.Errorf("unexpected admin: %+v", admin)
	}

	if _, err := s.GetAdminByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHasAnyAdmin(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	ctx := context.Background()

	has, err := s.HasAnyAdmin(ctx)
	if err != nil {
		t.Fatalf("HasAnyAdmin failed: %v", err)
	}
	if has {
		t.Error("expected no admins on fresh database")
	}

	if _, err := s.CreateAdmin(ctx, "root@example.com", RoleSuperadmin, ""); err != nil {
		t.Fatalf("CreateAdmin failed: %v", err)
	}

	has, err = s.HasAnyAdmin(ctx)
	if err != nil {
		t.Fatalf("HasAnyAdmin failed: %v", err)
	}
	if !has {
		t.Error("expected HasAnyAdmin true after creation")
	}
}

func TestUploadLifecycle(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	ctx := context.Background()

	up := &Upload{ID: "up-1", UploadName: "spring batch", FileName: "spring.csv",
		UploadedBy: "admin@example.com", UploadedAt: testTime(), RecordCount: 10}
	if err := s.CreateUpload(ctx, up); err != nil {
		t.Fatalf("CreateUpload failed: %v", err)
	}

	got, err := s.GetUpload(ctx, "up-1")
	if err != nil {
		t.Fatalf("GetUpload failed: %v", err)
	}
	if got.UploadName != "spring batch" || got.RecordCount != 10 {
		t.Errorf("unexpected upload: %+v", got)
	}

	if err := s.RenameUpload(ctx, "up-1", "renamed batch"); err != nil {
		t.Fatalf("RenameUpload failed: %v", err)
	}
	got, err = s.GetUpload(ctx, "up-1")
	if err != nil {
		t.Fatalf("GetUpload failed: %v", err)
	}
	if got.UploadName != "renamed batch" {
		t.Errorf("rename did not stick: %+v", got)
	}

	if err := s.RenameUpload(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound renaming missing upload, got %v", err)
	}

	if err := s.DeleteUpload(ctx, "up-1"); err != nil {
		t.Fatalf("DeleteUpload failed: %v", err)
	}
	if _, err := s.GetUpload(ctx, "up-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

// TestDeleteUploadCascades verifies allowlist rows disappear with their
// upload batch.
func TestDeleteUploadCascades(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	ctx := context.Background()

	up := &Upload{ID: "up-9", UploadName: "batch", FileName: "b.csv",
		UploadedBy: "admin@example.com", UploadedAt: testTime(), RecordCount: 1}
	if err := s.CreateUpload(ctx, up); err != nil {
		t.Fatalf("CreateUpload failed: %v", err)
	}
	if _, err := s.ReplaceAllowlist(ctx, "admin@example.com", "up-9", []AllowlistRecord{
		record("alicetg", "alice", "alice2"),
	}); err != nil {
		t.Fatalf("ReplaceAllowlist failed: %v", err)
	}

	if err := s.DeleteUpload(ctx, "up-9"); err != nil {
		t.Fatalf("DeleteUpload failed: %v", err)
	}

	if _, err := s.LookupByContactHandle(ctx, "alicetg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected allowlist row to cascade, got %v", err)
	}
}
