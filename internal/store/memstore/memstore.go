// Package memstore keeps shares, sessions, and participants in mutex-guarded
// maps. It backs tests and single-node deployments; a multi-instance
// deployment needs the gorm store.
package memstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TimyBen/cloud-file-management-system/internal/authz"
	"github.com/TimyBen/cloud-file-management-system/internal/domain"
	"github.com/TimyBen/cloud-file-management-system/internal/session"
	"github.com/TimyBen/cloud-file-management-system/internal/share"
)

type Store struct {
	mu           sync.RWMutex
	files        map[string]domain.File
	shares       map[string]domain.Share
	sessions     map[string]domain.Session
	participants map[string]domain.Participant // keyed by sessionID + "/" + userID

	logger *slog.Logger
}

func New(logger *slog.Logger) *Store {
	return &Store{
		files:        make(map[string]domain.File),
		shares:       make(map[string]domain.Share),
		sessions:     make(map[string]domain.Session),
		participants: make(map[string]domain.Participant),
		logger:       logger.With(slog.String("component", "memstore")),
	}
}

// compile-time checks against the contracts this store serves.
var (
	_ authz.FileSource  = (*Store)(nil)
	_ authz.ShareSource = (*Store)(nil)
	_ share.Store       = (*Store)(nil)
	_ session.Store     = (*Store)(nil)
)

func participantKey(sessionID, userID string) string {
	return sessionID + "/" + userID
}

// --- Files (seeded externally; the files service owns them) ---

func (s *Store) PutFile(f domain.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[f.ID] = f
}

func (s *Store) GetFile(_ context.Context, fileID string) (domain.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[fileID]
	if !ok {
		return domain.File{}, domain.ErrFileNotFound
	}
	return f, nil
}

// --- Shares ---

func (s *Store) FindActive(_ context.Context, fileID, userID string) (domain.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sh := range s.shares {
		if sh.FileID == fileID && sh.SharedWithUserID == userID && sh.IsActive {
			return sh, nil
		}
	}
	return domain.Share{}, domain.ErrShareNotFound
}

func (s *Store) GetByID(_ context.Context, shareID string) (domain.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shares[shareID]
	if !ok {
		return domain.Share{}, domain.ErrShareNotFound
	}
	return sh, nil
}

func (s *Store) Create(_ context.Context, sh *domain.Share) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sh.ID == "" {
		sh.ID = uuid.New().String()
	}
	if sh.CreatedAt.IsZero() {
		sh.CreatedAt = time.Now()
	}
	s.shares[sh.ID] = *sh
	return nil
}

func (s *Store) Save(_ context.Context, sh *domain.Share) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shares[sh.ID]; !ok {
		return domain.ErrShareNotFound
	}
	s.shares[sh.ID] = *sh
	return nil
}

func (s *Store) ListActive(_ context.Context, fileID string) ([]domain.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Share, 0)
	for _, sh := range s.shares {
		if sh.FileID == fileID && sh.IsActive {
			out = append(out, sh)
		}
	}
	return out, nil
}

// --- Sessions ---

func (s *Store) CreateSession(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if _, exists := s.sessions[sess.ID]; exists {
		return domain.ErrSessionExists
	}
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *Store) GetSession(_ context.Context, sessionID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Store) UpdateSessionStatus(_ context.Context, sessionID string, expect domain.SessionStatus, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if current.Status != expect {
		return domain.ErrStatusConflict
	}
	s.sessions[sessionID] = *sess
	return nil
}

// --- Participants ---

func (s *Store) UpsertParticipant(_ context.Context, p *domain.Participant) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := participantKey(p.SessionID, p.UserID)
	if existing, ok := s.participants[key]; ok {
		existing.Active = true
		existing.LeftAt = nil
		existing.DisplayName = p.DisplayName
		s.participants[key] = existing
		return existing, nil
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	s.participants[key] = *p
	return *p, nil
}

func (s *Store) DeactivateParticipant(_ context.Context, sessionID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := participantKey(sessionID, userID)
	p, ok := s.participants[key]
	if !ok || !p.Active {
		return nil
	}
	now := time.Now()
	p.Active = false
	p.LeftAt = &now
	s.participants[key] = p
	return nil
}

func (s *Store) ListActiveParticipants(_ context.Context, sessionID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Participant, 0)
	for _, p := range s.participants {
		if p.SessionID == sessionID && p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}
