package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actor is the authenticated identity a request acts as. It is built from
// token claims and never persisted by this service.
type Actor struct {
	ID    string
	Email string
	Role  GlobalRole
}

// File is owned by the files service; this core only reads id and owner.
type File struct {
	ID      string `gorm:"type:uuid;primaryKey"`
	OwnerID string `gorm:"type:uuid;not null;column:owner_id"`
}

func (File) TableName() string { return "files" }

// Share is a revocable delegated grant of a file from its owner to another
// user. At most one active share exists per (file, target) pair; re-sharing
// updates the record in place and revocation deactivates it without deleting.
type Share struct {
	ID               string      `gorm:"type:uuid;primaryKey" json:"id"`
	FileID           string      `gorm:"type:uuid;not null;index" json:"fileId"`
	SharedByUserID   string      `gorm:"type:uuid;not null" json:"sharedByUserId"`
	SharedWithUserID string      `gorm:"type:uuid;not null;index" json:"sharedWithUserId"`
	Permission       Permission  `gorm:"type:varchar(20);not null" json:"permission"`
	ContextRole      ContextRole `gorm:"type:varchar(20);not null" json:"contextRole"`
	IsActive         bool        `gorm:"not null;default:true" json:"isActive"`
	CreatedAt        time.Time   `gorm:"autoCreateTime" json:"createdAt"`
	RevokedAt        *time.Time  `json:"revokedAt,omitempty"`
}

func (Share) TableName() string { return "file_shares" }

func (s *Share) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// SessionStatus is the session lifecycle state. Ended is terminal.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// Session is one bounded collaboration instance scoped to a file.
type Session struct {
	ID              string        `gorm:"type:uuid;primaryKey" json:"id"`
	FileID          string        `gorm:"type:uuid;not null;index" json:"fileId"`
	StartedByUserID string        `gorm:"type:uuid;not null" json:"startedByUserId"`
	Status          SessionStatus `gorm:"type:varchar(10);not null;default:'active'" json:"status"`
	StartedAt       time.Time     `gorm:"autoCreateTime" json:"startedAt"`
	EndedAt         *time.Time    `json:"endedAt,omitempty"`
}

func (Session) TableName() string { return "collaboration_sessions" }

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// Participant is a user's membership in a session. A user holds at most one
// active record per session; rejoining reactivates it.
type Participant struct {
	ID          string     `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID   string     `gorm:"type:uuid;not null;index" json:"sessionId"`
	UserID      string     `gorm:"type:uuid;not null;index" json:"userId"`
	DisplayName string     `gorm:"type:varchar(255)" json:"displayName"`
	Active      bool       `gorm:"not null;default:true" json:"active"`
	JoinedAt    time.Time  `gorm:"autoCreateTime" json:"joinedAt"`
	LeftAt      *time.Time `json:"leftAt,omitempty"`
}

func (Participant) TableName() string { return "session_participants" }

func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
