// Package gormstore persists shares, sessions, and participants in postgres
// through gorm. It is the durable counterpart to memstore and satisfies the
// same contracts.
package gormstore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/TimyBen/cloud-file-management-system/internal/authz"
	"github.com/TimyBen/cloud-file-management-system/internal/domain"
	"github.com/TimyBen/cloud-file-management-system/internal/session"
	"github.com/TimyBen/cloud-file-management-system/internal/share"
)

type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to postgres and migrates the tables this core owns. The
// files table belongs to the files service and is read, never migrated,
// here.
func Open(dsn string, log *slog.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true, // surfaces gorm.ErrDuplicatedKey on id conflicts
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&domain.Share{}, &domain.Session{}, &domain.Participant{}); err != nil {
		return nil, err
	}
	return New(db, log), nil
}

func New(db *gorm.DB, log *slog.Logger) *Store {
	return &Store{db: db, logger: log.With(slog.String("component", "gormstore"))}
}

var (
	_ authz.FileSource  = (*Store)(nil)
	_ authz.ShareSource = (*Store)(nil)
	_ share.Store       = (*Store)(nil)
	_ session.Store     = (*Store)(nil)
)

// --- Files ---

func (s *Store) GetFile(ctx context.Context, fileID string) (domain.File, error) {
	var f domain.File
	err := s.db.WithContext(ctx).Where("id = ?", fileID).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.File{}, domain.ErrFileNotFound
	}
	return f, err
}

// --- Shares ---

func (s *Store) FindActive(ctx context.Context, fileID, userID string) (domain.Share, error) {
	var sh domain.Share
	err := s.db.WithContext(ctx).
		Where("file_id = ? AND shared_with_user_id = ? AND is_active = ?", fileID, userID, true).
		First(&sh).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Share{}, domain.ErrShareNotFound
	}
	return sh, err
}

func (s *Store) GetByID(ctx context.Context, shareID string) (domain.Share, error) {
	var sh domain.Share
	err := s.db.WithContext(ctx).Where("id = ?", shareID).First(&sh).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Share{}, domain.ErrShareNotFound
	}
	return sh, err
}

func (s *Store) Create(ctx context.Context, sh *domain.Share) error {
	return s.db.WithContext(ctx).Create(sh).Error
}

func (s *Store) Save(ctx context.Context, sh *domain.Share) error {
	return s.db.WithContext(ctx).Save(sh).Error
}

func (s *Store) ListActive(ctx context.Context, fileID string) ([]domain.Share, error) {
	var shares []domain.Share
	err := s.db.WithContext(ctx).
		Where("file_id = ? AND is_active = ?", fileID, true).
		Find(&shares).Error
	return shares, err
}

// --- Sessions ---

func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	err := s.db.WithContext(ctx).Create(sess).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrSessionExists
	}
	return err
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	var sess domain.Session
	err := s.db.WithContext(ctx).Where("id = ?", sessionID).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return sess, err
}

// UpdateSessionStatus is a compare-and-update: the write only lands when the
// stored status still matches expect.
func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID string, expect domain.SessionStatus, sess *domain.Session) error {
	res := s.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND status = ?", sessionID, expect).
		Updates(map[string]any{
			"status":   sess.Status,
			"ended_at": sess.EndedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var current domain.Session
		err := s.db.WithContext(ctx).Where("id = ?", sessionID).First(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		return domain.ErrStatusConflict
	}
	return nil
}

// --- Participants ---

func (s *Store) UpsertParticipant(ctx context.Context, p *domain.Participant) (domain.Participant, error) {
	var out domain.Participant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.Participant
		err := tx.Where("session_id = ? AND user_id = ?", p.SessionID, p.UserID).
			First(&existing).Error
		switch {
		case err == nil:
			existing.Active = true
			existing.LeftAt = nil
			existing.DisplayName = p.DisplayName
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			out = existing
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(p).Error; err != nil {
				return err
			}
			out = *p
			return nil
		default:
			return err
		}
	})
	return out, err
}

func (s *Store) DeactivateParticipant(ctx context.Context, sessionID, userID string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&domain.Participant{}).
		Where("session_id = ? AND user_id = ? AND active = ?", sessionID, userID, true).
		Updates(map[string]any{"active": false, "left_at": &now}).Error
}

func (s *Store) ListActiveParticipants(ctx context.Context, sessionID string) ([]domain.Participant, error) {
	var out []domain.Participant
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND active = ?", sessionID, true).
		Find(&out).Error
	return out, err
}
