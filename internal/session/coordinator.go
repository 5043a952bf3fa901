// Package session manages the collaboration session state machine and its
// participant roster. A session moves none -> active -> ended; ended is
// terminal and rejects every further join, leave, or broadcast.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TimyBen/cloud-file-management-system/internal/authz"
	"github.com/TimyBen/cloud-file-management-system/internal/domain"
)

// ErrForbidden matches any authorization failure via errors.Is.
var ErrForbidden = errors.New("forbidden")

// ForbiddenError carries the machine reason for a denied operation.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string { return "forbidden: " + e.Reason }

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

func forbidden(reason authz.DenyReason) error {
	return &ForbiddenError{Reason: string(reason)}
}

type Coordinator struct {
	resolver *authz.Resolver
	store    Store
	logger   *slog.Logger
	now      func() time.Time
}

func NewCoordinator(resolver *authz.Resolver, store Store, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		resolver: resolver,
		store:    store,
		logger:   logger.With(slog.String("component", "session_coordinator")),
		now:      time.Now,
	}
}

// Start creates an active session for a file. Starting a session is a
// modifying action, so the caller needs write-like access.
func (c *Coordinator) Start(ctx context.Context, actor domain.Actor, fileID string) (domain.Session, error) {
	decision, err := c.resolver.CanAct(ctx, actor, fileID, domain.OpWrite)
	if err != nil {
		return domain.Session{}, err
	}
	if !decision.Allowed {
		return domain.Session{}, forbidden(decision.Reason)
	}

	s := domain.Session{
		FileID:          fileID,
		StartedByUserID: actor.ID,
		Status:          domain.SessionActive,
		StartedAt:       c.now(),
	}
	if err := c.store.CreateSession(ctx, &s); err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	c.logger.Info("Session started",
		slog.String("sessionID", s.ID),
		slog.String("fileID", fileID),
		slog.String("startedBy", actor.ID),
	)
	return s, nil
}

// Join adds the actor to a session's roster, reactivating a previous
// participant record if one exists. Joining an ended session fails with
// domain.ErrSessionEnded. The actor must hold at least read access to the
// session's file; session existence alone does not admit strangers.
func (c *Coordinator) Join(ctx context.Context, actor domain.Actor, sessionID, displayName string) (domain.Participant, error) {
	s, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Participant{}, err
	}
	if s.Status == domain.SessionEnded {
		return domain.Participant{}, domain.ErrSessionEnded
	}

	decision, err := c.resolver.CanAct(ctx, actor, s.FileID, domain.OpRead)
	if err != nil {
		return domain.Participant{}, err
	}
	if !decision.Allowed {
		return domain.Participant{}, forbidden(decision.Reason)
	}

	p := domain.Participant{
		SessionID:   sessionID,
		UserID:      actor.ID,
		DisplayName: displayName,
		Active:      true,
		JoinedAt:    c.now(),
	}
	joined, err := c.store.UpsertParticipant(ctx, &p)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("upsert participant: %w", err)
	}
	c.logger.Info("Participant joined",
		slog.String("sessionID", sessionID),
		slog.String("userID", actor.ID),
	)
	return joined, nil
}

// Leave deactivates the actor's participant record. Leaving a session the
// actor never joined, or already left, is a no-op success so the gateway can
// call it unconditionally on disconnect.
func (c *Coordinator) Leave(ctx context.Context, userID, sessionID string) error {
	if err := c.store.DeactivateParticipant(ctx, sessionID, userID); err != nil {
		return fmt.Errorf("deactivate participant: %w", err)
	}
	c.logger.Info("Participant left",
		slog.String("sessionID", sessionID),
		slog.String("userID", userID),
	)
	return nil
}

// End terminates a session. Only the starter or a global admin may end it.
// Ending an already ended session returns the terminal session unchanged,
// keeping the call idempotent under retries. The transition is guarded by
// the store's conditional update so two racing enders cannot both write.
func (c *Coordinator) End(ctx context.Context, actor domain.Actor, sessionID string) (domain.Session, error) {
	s, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if actor.ID != s.StartedByUserID && actor.Role != domain.GlobalRoleAdmin {
		return domain.Session{}, &ForbiddenError{Reason: "not_session_starter"}
	}
	if s.Status == domain.SessionEnded {
		return s, nil
	}

	now := c.now()
	s.Status = domain.SessionEnded
	s.EndedAt = &now
	err = c.store.UpdateSessionStatus(ctx, sessionID, domain.SessionActive, &s)
	if errors.Is(err, domain.ErrStatusConflict) {
		// Lost the race against another ender; re-read the terminal state.
		return c.store.GetSession(ctx, sessionID)
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("end session: %w", err)
	}
	c.logger.Info("Session ended",
		slog.String("sessionID", sessionID),
		slog.String("endedBy", actor.ID),
	)
	return s, nil
}

// ListParticipants returns the active roster. The caller needs read access
// to the session's file.
func (c *Coordinator) ListParticipants(ctx context.Context, actor domain.Actor, sessionID string) ([]domain.Participant, error) {
	s, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	decision, err := c.resolver.CanAct(ctx, actor, s.FileID, domain.OpRead)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, forbidden(decision.Reason)
	}
	return c.store.ListActiveParticipants(ctx, sessionID)
}

// Get returns the session record.
func (c *Coordinator) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	return c.store.GetSession(ctx, sessionID)
}
