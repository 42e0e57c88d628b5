package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/soaringjerry/Vox/internal/services"
)

// timeLayout is fixed width in UTC so TEXT columns compare in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var (
	_ services.SessionStore   = (*SQLiteStore)(nil)
	_ services.RoleStore      = (*SQLiteStore)(nil)
	_ services.RecordingStore = (*SQLiteStore)(nil)
	_ services.WhitelistStore = (*SQLiteStore)(nil)
)

func NewSQLiteStore(db *sql.DB, logger *zap.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db, logger: logger.Named("sqlite")}, nil
}

func (s *SQLiteStore) logErr(prefix string, err error) {
	if err != nil {
		s.logger.Warn(prefix, zap.Error(err))
	}
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		// Rows written by hand or by CURRENT_TIMESTAMP.
		if t2, err2 := time.Parse(time.RFC3339Nano, v); err2 == nil {
			return t2.UTC()
		}
		if t3, err3 := time.Parse("2006-01-02 15:04:05", v); err3 == nil {
			return t3.UTC()
		}
		return time.Time{}
	}
	return t
}

// Sessions

func (s *SQLiteStore) InsertSession(ctx context.Context, sess *services.AdminSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO admin_sessions (session_token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		sess.Token, sess.UserID, formatTime(sess.ExpiresAt), formatTime(sess.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, token string) (*services.AdminSession, error) {
	var (
		sess      services.AdminSession
		expiresAt string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT session_token, user_id, expires_at, created_at FROM admin_sessions WHERE session_token = ?`, token).
		Scan(&sess.Token, &sess.UserID, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	sess.ExpiresAt = parseTime(expiresAt)
	sess.CreatedAt = parseTime(createdAt)
	return &sess, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE session_token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	s.logErr("rows affected", err)
	return int(n), nil
}

// Roles

func (s *SQLiteStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM user_roles WHERE user_id = ? AND role = ?`, userID, role).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has role: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) AddRole(ctx context.Context, r *services.UserRole) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_roles (id, user_id, role, created_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.UserID, r.Role, formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("add role: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RemoveRole(ctx context.Context, userID, role string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = ? AND role = ?`, userID, role)
	if err != nil {
		return false, fmt.Errorf("remove role: %w", err)
	}
	n, err := res.RowsAffected()
	s.logErr("rows affected", err)
	return n > 0, nil
}

func (s *SQLiteStore) ListRoles(ctx context.Context) ([]*services.UserRole, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, role, created_at FROM user_roles ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()
	out := make([]*services.UserRole, 0)
	for rows.Next() {
		var (
			r         services.UserRole
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.Role, &createdAt); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		r.CreatedAt = parseTime(createdAt)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return out, nil
}

// InsertFirstAdmin is a single conditional INSERT so two concurrent
// bootstraps cannot both succeed.
func (s *SQLiteStore) InsertFirstAdmin(ctx context.Context, r *services.UserRole) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user_roles (id, user_id, role, created_at)
		 SELECT ?, ?, ?, ? WHERE NOT EXISTS (SELECT 1 FROM user_roles WHERE role = ?)`,
		r.ID, r.UserID, r.Role, formatTime(r.CreatedAt), services.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("insert first admin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert first admin: %w", err)
	}
	return n == 1, nil
}

// Recordings

const recordingColumns = `id, user_id, question_id, object_key, audio_url, content_type, size_bytes, created_at`

func scanRecording(scan func(dest ...any) error) (*services.Recording, error) {
	var (
		r         services.Recording
		createdAt string
	)
	if err := scan(&r.ID, &r.UserID, &r.QuestionID, &r.ObjectKey, &r.AudioURL, &r.ContentType, &r.SizeBytes, &createdAt); err != nil {
		return nil, err
	}
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

func (s *SQLiteStore) InsertRecording(ctx context.Context, r *services.Recording) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recordings (`+recordingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.QuestionID, r.ObjectKey, r.AudioURL, r.ContentType, r.SizeBytes, formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListRecordings(ctx context.Context) ([]*services.Recording, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordingColumns+` FROM recordings ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()
	out := make([]*services.Recording, 0)
	for rows.Next() {
		r, err := scanRecording(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) GetRecording(ctx context.Context, id string) (*services.Recording, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
	r, err := scanRecording(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return r, nil
}

// Whitelist

func (s *SQLiteStore) AddWhitelistEmail(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO admin_whitelist (email) VALUES (?)`, email); err != nil {
		return fmt.Errorf("add whitelist email: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IsWhitelisted(ctx context.Context, email string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM admin_whitelist WHERE email = ?`, strings.ToLower(strings.TrimSpace(email))).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("is whitelisted: %w", err)
	}
	return n > 0, nil
}
