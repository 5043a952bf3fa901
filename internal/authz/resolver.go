// Package authz resolves whether an actor may perform an operation on a
// file. Decisions combine three authority sources, in precedence order:
// global admin role, file ownership, and an active delegated share. Nothing
// here is cached; revoking a share takes effect on the very next decision.
package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/TimyBen/cloud-file-management-system/internal/domain"
)

// DenyReason is the machine-readable cause of a denied decision.
type DenyReason string

const (
	ReasonNoActiveShare     DenyReason = "no_active_share"
	ReasonViewerCannotWrite DenyReason = "viewer_cannot_modify"
)

// Decision is the outcome of one authorization check. It is a plain value;
// a deny is not an error.
type Decision struct {
	Allowed bool
	Reason  DenyReason
	Level   domain.AccessLevel
}

func allow(level domain.AccessLevel) Decision {
	return Decision{Allowed: true, Level: level}
}

func deny(reason DenyReason) Decision {
	return Decision{Reason: reason, Level: domain.AccessNone}
}

// Resolve is the pure decision core. It takes the freshly loaded file and the
// single active share for (file, actor), nil when none exists, and returns
// the decision. Rules apply in order, first match wins:
//
//  1. global admin            -> allow
//  2. actor owns the file     -> allow
//  3. no active share         -> deny(no_active_share)
//  4. viewer, write operation -> deny(viewer_cannot_modify)
//  5. otherwise               -> allow
//
// The share's context role is recomputed from its permission; a drifted
// stored value is ignored.
func Resolve(actor domain.Actor, file domain.File, share *domain.Share, op domain.Operation) Decision {
	if actor.Role == domain.GlobalRoleAdmin {
		return allow(domain.AccessAdmin)
	}
	if actor.ID == file.OwnerID {
		return allow(domain.AccessOwner)
	}
	if share == nil || !share.IsActive {
		return deny(ReasonNoActiveShare)
	}
	role := domain.RoleForPermission(share.Permission)
	if role == domain.RoleViewer {
		if op != domain.OpRead {
			return deny(ReasonViewerCannotWrite)
		}
		return allow(domain.AccessViewer)
	}
	return allow(domain.AccessCollaborator)
}

// FileSource loads the current file record. Files are owned by an external
// service; only id and owner are consulted here.
type FileSource interface {
	GetFile(ctx context.Context, fileID string) (domain.File, error)
}

// ShareSource finds the single active share for a (file, user) pair, or
// domain.ErrShareNotFound when none exists.
type ShareSource interface {
	FindActive(ctx context.Context, fileID, userID string) (domain.Share, error)
}

type Resolver struct {
	files  FileSource
	shares ShareSource
	logger *slog.Logger
}

func NewResolver(files FileSource, shares ShareSource, logger *slog.Logger) *Resolver {
	return &Resolver{
		files:  files,
		shares: shares,
		logger: logger.With(slog.String("component", "authz_resolver")),
	}
}

// CanAct loads current ownership and share state and runs Resolve over it.
// A file the actor has no relationship with denies with no_active_share, the
// same reason as a file that does not exist, so callers cannot probe for
// file existence.
func (r *Resolver) CanAct(ctx context.Context, actor domain.Actor, fileID string, op domain.Operation) (Decision, error) {
	file, err := r.files.GetFile(ctx, fileID)
	if err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			// Admins learn the file is missing; everyone else sees the
			// same deny as an unshared file.
			if actor.Role == domain.GlobalRoleAdmin {
				return Decision{}, domain.ErrFileNotFound
			}
			return deny(ReasonNoActiveShare), nil
		}
		return Decision{}, fmt.Errorf("load file %s: %w", fileID, err)
	}

	var share *domain.Share
	found, err := r.shares.FindActive(ctx, fileID, actor.ID)
	switch {
	case err == nil:
		share = &found
	case errors.Is(err, domain.ErrShareNotFound):
		// no delegated grant; ownership and role rules still apply
	default:
		return Decision{}, fmt.Errorf("load share for file %s user %s: %w", fileID, actor.ID, err)
	}

	d := Resolve(actor, file, share, op)
	if !d.Allowed {
		r.logger.Debug("Access denied",
			slog.String("userID", actor.ID),
			slog.String("fileID", fileID),
			slog.String("op", op.String()),
			slog.String("reason", string(d.Reason)),
		)
	}
	return d, nil
}
