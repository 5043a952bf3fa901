package session

import (
	"context"

	"github.com/TimyBen/cloud-file-management-system/internal/domain"
)

// Store is the persistence contract for sessions and participants. The
// backing engine is an external concern; the coordinator only relies on the
// conditional primitives below plus read-after-write consistency (a
// participant list issued right after a join must include it).
type Store interface {
	// CreateSession persists a new session. A duplicate id fails with
	// domain.ErrSessionExists.
	CreateSession(ctx context.Context, s *domain.Session) error

	// GetSession returns domain.ErrSessionNotFound for an unknown id.
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)

	// UpdateSessionStatus transitions a session from an expected status.
	// When the stored status no longer matches expect it fails with
	// domain.ErrStatusConflict and writes nothing, which is what makes two
	// racing end calls safe.
	UpdateSessionStatus(ctx context.Context, sessionID string, expect domain.SessionStatus, s *domain.Session) error

	// UpsertParticipant inserts a participant or reactivates the existing
	// record for (session, user), so rejoining never duplicates.
	UpsertParticipant(ctx context.Context, p *domain.Participant) (domain.Participant, error)

	// DeactivateParticipant marks the participant inactive and stamps
	// left_at. Unknown or already inactive records are a no-op.
	DeactivateParticipant(ctx context.Context, sessionID, userID string) error

	// ListActiveParticipants returns all active participants of a session.
	ListActiveParticipants(ctx context.Context, sessionID string) ([]domain.Participant, error)
}
