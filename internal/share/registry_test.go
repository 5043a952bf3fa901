package share_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/TimyBen/cloud-file-management-system/internal/domain"
	"github.com/TimyBen/cloud-file-management-system/internal/share"
	"github.com/TimyBen/cloud-file-management-system/internal/store/memstore"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestRegistry(t *testing.T) (*share.Registry, *memstore.Store) {
	t.Helper()
	store := memstore.New(newTestLogger())
	store.PutFile(domain.File{ID: "file-1", OwnerID: "owner"})
	return share.NewRegistry(store, store, newTestLogger()), store
}

func TestShareCreatesAndDerivesRole(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	sh, err := registry.Share(ctx, "file-1", "owner", "alice", domain.PermissionWrite)
	if err != nil {
		t.Fatalf("Share failed: %v", err)
	}
	if sh.ContextRole != domain.RoleCollaborator {
		t.Errorf("ContextRole = %q, want collaborator", sh.ContextRole)
	}
	if !sh.IsActive || sh.RevokedAt != nil {
		t.Errorf("new share not active: %+v", sh)
	}
}

func TestShareRejectsNonOwner(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, err := registry.Share(context.Background(), "file-1", "mallory", "alice", domain.PermissionRead)
	if !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
}

func TestReshareUpdatesInPlace(t *testing.T) {
	registry, store := newTestRegistry(t)
	ctx := context.Background()

	first, err := registry.Share(ctx, "file-1", "owner", "alice", domain.PermissionRead)
	if err != nil {
		t.Fatalf("first Share: %v", err)
	}
	second, err := registry.Share(ctx, "file-1", "owner", "alice", domain.PermissionWrite)
	if err != nil {
		t.Fatalf("second Share: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("re-share created a new record: %s vs %s", second.ID, first.ID)
	}
	if second.Permission != domain.PermissionWrite || second.ContextRole != domain.RoleCollaborator {
		t.Errorf("re-share did not update permission: %+v", second)
	}

	active, err := store.ListActive(ctx, "file-1")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("want exactly one active share, got %d", len(active))
	}
}

func TestRevokeIsSoftAndIdempotent(t *testing.T) {
	registry, store := newTestRegistry(t)
	ctx := context.Background()

	sh, err := registry.Share(ctx, "file-1", "owner", "alice", domain.PermissionRead)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}

	revoked, err := registry.Revoke(ctx, sh.ID, "owner")
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if revoked.IsActive || revoked.RevokedAt == nil {
		t.Errorf("revoked share still active: %+v", revoked)
	}

	// second revoke is a no-op success
	again, err := registry.Revoke(ctx, sh.ID, "owner")
	if err != nil {
		t.Fatalf("second Revoke errored: %v", err)
	}
	if again.IsActive {
		t.Error("second Revoke reactivated the share")
	}

	// the record survives for audit
	if _, err := store.GetByID(ctx, sh.ID); err != nil {
		t.Errorf("revoked share was deleted: %v", err)
	}
}

func TestReshareAfterRevokeReactivates(t *testing.T) {
	registry, store := newTestRegistry(t)
	ctx := context.Background()

	sh, _ := registry.Share(ctx, "file-1", "owner", "alice", domain.PermissionRead)
	if _, err := registry.Revoke(ctx, sh.ID, "owner"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	re, err := registry.Share(ctx, "file-1", "owner", "alice", domain.PermissionComment)
	if err != nil {
		t.Fatalf("re-Share: %v", err)
	}
	if !re.IsActive || re.RevokedAt != nil {
		t.Errorf("re-share did not reactivate: %+v", re)
	}

	active, _ := store.ListActive(ctx, "file-1")
	if len(active) != 1 {
		t.Fatalf("want exactly one active share after reactivation, got %d", len(active))
	}
}

func TestUpdateRechecksCurrentOwnership(t *testing.T) {
	registry, store := newTestRegistry(t)
	ctx := context.Background()

	sh, _ := registry.Share(ctx, "file-1", "owner", "alice", domain.PermissionRead)

	// Ownership transfers after the share was created. The original sharer
	// must lose management rights even though the share still names them.
	store.PutFile(domain.File{ID: "file-1", OwnerID: "new-owner"})

	if _, err := registry.Update(ctx, sh.ID, "owner", domain.PermissionWrite); !errors.Is(err, domain.ErrNotOwner) {
		t.Errorf("stale owner update err = %v, want ErrNotOwner", err)
	}
	if _, err := registry.Update(ctx, sh.ID, "new-owner", domain.PermissionWrite); err != nil {
		t.Errorf("current owner update failed: %v", err)
	}
}

func TestUpdateUnknownShare(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, err := registry.Update(context.Background(), "missing", "owner", domain.PermissionRead)
	if !errors.Is(err, domain.ErrShareNotFound) {
		t.Fatalf("err = %v, want ErrShareNotFound", err)
	}
}
