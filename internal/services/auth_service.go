package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultSessionTTL = 24 * time.Hour
	sessionTokenBytes = 32
)

// PasswordService exchanges the shared recordings password for an admin
// session.
type PasswordService struct {
	sessions SessionStore
	secret   string
	ttl      time.Duration
	now      func() time.Time
	tokenGen func() (string, error)
	logger   *zap.Logger
}

func NewPasswordService(sessions SessionStore, secret string, ttl time.Duration, logger *zap.Logger) *PasswordService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PasswordService{
		sessions: sessions,
		secret:   secret,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
		tokenGen: func() (string, error) { return randomToken(sessionTokenBytes) },
		logger:   logger,
	}
}

func (s *PasswordService) Verify(ctx context.Context, password string) (*AdminSession, error) {
	if password == "" {
		return nil, NewInvalidError("Invalid request")
	}
	if s.secret == "" {
		s.logger.Error("recordings password is not configured")
		return nil, NewMisconfiguredError("Server configuration error")
	}
	if !secretMatches(s.secret, password) {
		s.logger.Warn("rejected admin password attempt")
		return nil, NewUnauthorizedError("Invalid password")
	}
	token, err := s.tokenGen()
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess := &AdminSession{Token: token, UserID: PasswordUserID, ExpiresAt: now.Add(s.ttl), CreatedAt: now}
	if err := s.sessions.InsertSession(ctx, sess); err != nil {
		return nil, err
	}
	if n, err := s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		s.logger.Warn("sweep expired sessions", zap.Error(err))
	} else if n > 0 {
		s.logger.Debug("swept expired sessions", zap.Int("count", n))
	}
	return sess, nil
}

// SessionService validates bearer tokens presented to the admin endpoints.
type SessionService struct {
	store  SessionStore
	now    func() time.Time
	logger *zap.Logger
}

func NewSessionService(store SessionStore, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

func (s *SessionService) Validate(ctx context.Context, token string) (*AdminSession, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, NewUnauthorizedError("Unauthorized - No session token")
	}
	sess, err := s.store.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, NewUnauthorizedError("Invalid or expired session")
	}
	if !sess.Active(s.now()) {
		if err := s.store.DeleteSession(ctx, token); err != nil {
			s.logger.Warn("delete expired session", zap.Error(err))
		}
		return nil, NewSessionExpiredError("Invalid or expired session")
	}
	return sess, nil
}

func (s *SessionService) SignOut(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return NewUnauthorizedError("Unauthorized - No session token")
	}
	return s.store.DeleteSession(ctx, token)
}

// Sweep removes every session whose expiry has passed.
func (s *SessionService) Sweep(ctx context.Context) (int, error) {
	return s.store.DeleteExpiredSessions(ctx, s.now())
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *SessionService) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Warn("session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("session sweep", zap.Int("removed", n))
			}
		}
	}
}

// secretMatches compares supplied against configured without leaking timing.
// A configured value that looks like a bcrypt hash is checked with bcrypt.
func secretMatches(configured, supplied string) bool {
	if strings.HasPrefix(configured, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(supplied)) == nil
	}
	want := sha256.Sum256([]byte(configured))
	got := sha256.Sum256([]byte(supplied))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
