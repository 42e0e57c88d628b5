package services

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RoleAdmin is the only role the services check for.
const RoleAdmin = "admin"

// PasswordUserID is the user id attached to sessions opened with the shared
// recordings password. No user_roles row exists for it unless an operator
// adds one.
var PasswordUserID = uuid.Nil.String()

// AdminSession is a short-lived bearer credential for the admin endpoints.
type AdminSession struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Active reports whether the session may still be used at now.
func (s *AdminSession) Active(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

type UserRole struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Recording is the metadata row of one uploaded answer. QuestionID 0 marks a
// whole-session recording.
type Recording struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	QuestionID  int       `json:"question_id"`
	ObjectKey   string    `json:"object_key"`
	AudioURL    string    `json:"audio_url"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

type SessionStore interface {
	InsertSession(ctx context.Context, s *AdminSession) error
	// GetSession returns nil, nil when the token is unknown.
	GetSession(ctx context.Context, token string) (*AdminSession, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

type RoleStore interface {
	HasRole(ctx context.Context, userID, role string) (bool, error)
	AddRole(ctx context.Context, r *UserRole) error
	RemoveRole(ctx context.Context, userID, role string) (bool, error)
	// ListRoles returns every role, newest first.
	ListRoles(ctx context.Context) ([]*UserRole, error)
	// InsertFirstAdmin inserts r only if no admin role exists yet and
	// reports whether it did.
	InsertFirstAdmin(ctx context.Context, r *UserRole) (bool, error)
}

type RecordingStore interface {
	InsertRecording(ctx context.Context, r *Recording) error
	// ListRecordings returns every recording, newest first.
	ListRecordings(ctx context.Context) ([]*Recording, error)
	GetRecording(ctx context.Context, id string) (*Recording, error)
}

type WhitelistStore interface {
	AddWhitelistEmail(ctx context.Context, email string) error
	IsWhitelisted(ctx context.Context, email string) (bool, error)
}

// BlobStore is the object storage bucket that holds the audio payloads.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (publicURL string, err error)
	Exists(ctx context.Context, key string) (bool, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
