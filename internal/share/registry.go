// Package share owns the lifecycle of delegated access grants. Every
// mutation re-checks ownership against the current file record, never
// against the sharer id stored on the share itself, so a stale share cannot
// outlive an ownership change.
package share

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/TimyBen/cloud-file-management-system/internal/authz"
	"github.com/TimyBen/cloud-file-management-system/internal/domain"
)

// Store is the persistence contract for share records. FindActive returns
// domain.ErrShareNotFound when no active share exists for the pair; GetByID
// returns it when the id is unknown.
type Store interface {
	FindActive(ctx context.Context, fileID, userID string) (domain.Share, error)
	GetByID(ctx context.Context, shareID string) (domain.Share, error)
	Create(ctx context.Context, share *domain.Share) error
	Save(ctx context.Context, share *domain.Share) error
	ListActive(ctx context.Context, fileID string) ([]domain.Share, error)
}

type Registry struct {
	files  authz.FileSource
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewRegistry(files authz.FileSource, store Store, logger *slog.Logger) *Registry {
	return &Registry{
		files:  files,
		store:  store,
		logger: logger.With(slog.String("component", "share_registry")),
		now:    time.Now,
	}
}

// requireOwner loads the file and checks the caller owns it right now.
func (r *Registry) requireOwner(ctx context.Context, fileID, userID string) (domain.File, error) {
	file, err := r.files.GetFile(ctx, fileID)
	if err != nil {
		return domain.File{}, err
	}
	if file.OwnerID != userID {
		return domain.File{}, domain.ErrNotOwner
	}
	return file, nil
}

// Share grants targetUserID access to a file. If an active share to the same
// target already exists the record is updated in place, keeping the
// single-active-share-per-pair invariant; a previously revoked share to the
// target is reactivated the same way. Only the current owner may share.
func (r *Registry) Share(ctx context.Context, fileID, byUserID, targetUserID string, permission domain.Permission) (domain.Share, error) {
	if !permission.Valid() {
		return domain.Share{}, fmt.Errorf("invalid permission %q", permission)
	}
	if _, err := r.requireOwner(ctx, fileID, byUserID); err != nil {
		return domain.Share{}, err
	}

	existing, err := r.store.FindActive(ctx, fileID, targetUserID)
	if err == nil {
		existing.Permission = permission
		existing.ContextRole = domain.RoleForPermission(permission)
		existing.SharedByUserID = byUserID
		existing.IsActive = true
		existing.RevokedAt = nil
		if err := r.store.Save(ctx, &existing); err != nil {
			return domain.Share{}, fmt.Errorf("update share %s: %w", existing.ID, err)
		}
		r.logger.Info("Share updated in place",
			slog.String("shareID", existing.ID),
			slog.String("fileID", fileID),
			slog.String("sharedWith", targetUserID),
			slog.String("permission", string(permission)),
		)
		return existing, nil
	}

	created := domain.Share{
		FileID:           fileID,
		SharedByUserID:   byUserID,
		SharedWithUserID: targetUserID,
		Permission:       permission,
		ContextRole:      domain.RoleForPermission(permission),
		IsActive:         true,
	}
	if err := r.store.Create(ctx, &created); err != nil {
		return domain.Share{}, fmt.Errorf("create share: %w", err)
	}
	r.logger.Info("Share created",
		slog.String("shareID", created.ID),
		slog.String("fileID", fileID),
		slog.String("sharedWith", targetUserID),
		slog.String("permission", string(permission)),
	)
	return created, nil
}

// Update changes the permission of an existing share. Ownership is
// re-checked through the file, not taken from the share record.
func (r *Registry) Update(ctx context.Context, shareID, byUserID string, permission domain.Permission) (domain.Share, error) {
	if !permission.Valid() {
		return domain.Share{}, fmt.Errorf("invalid permission %q", permission)
	}
	sh, err := r.store.GetByID(ctx, shareID)
	if err != nil {
		return domain.Share{}, err
	}
	if _, err := r.requireOwner(ctx, sh.FileID, byUserID); err != nil {
		return domain.Share{}, err
	}

	sh.Permission = permission
	sh.ContextRole = domain.RoleForPermission(permission)
	if err := r.store.Save(ctx, &sh); err != nil {
		return domain.Share{}, fmt.Errorf("update share %s: %w", shareID, err)
	}
	r.logger.Info("Share permission updated",
		slog.String("shareID", shareID),
		slog.String("permission", string(permission)),
	)
	return sh, nil
}

// Revoke soft-deactivates a share. Revoking an already revoked share is a
// no-op success, so retries are safe. The record is kept for audit.
func (r *Registry) Revoke(ctx context.Context, shareID, byUserID string) (domain.Share, error) {
	sh, err := r.store.GetByID(ctx, shareID)
	if err != nil {
		return domain.Share{}, err
	}
	if _, err := r.requireOwner(ctx, sh.FileID, byUserID); err != nil {
		return domain.Share{}, err
	}
	if !sh.IsActive {
		return sh, nil
	}

	now := r.now()
	sh.IsActive = false
	sh.RevokedAt = &now
	if err := r.store.Save(ctx, &sh); err != nil {
		return domain.Share{}, fmt.Errorf("revoke share %s: %w", shareID, err)
	}
	r.logger.Info("Share revoked", slog.String("shareID", shareID), slog.String("fileID", sh.FileID))
	return sh, nil
}

// ListActive returns all active shares for a file.
func (r *Registry) ListActive(ctx context.Context, fileID string) ([]domain.Share, error) {
	return r.store.ListActive(ctx, fileID)
}

// ListActiveFor is ListActive gated for the API surface: only the current
// owner or a global admin may enumerate a file's shares.
func (r *Registry) ListActiveFor(ctx context.Context, fileID string, actor domain.Actor) ([]domain.Share, error) {
	if actor.Role != domain.GlobalRoleAdmin {
		if _, err := r.requireOwner(ctx, fileID, actor.ID); err != nil {
			return nil, err
		}
	}
	return r.store.ListActive(ctx, fileID)
}
