package api

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/soaringjerry/Vox/internal/services"
)

// MemoryStore keeps all rows in process memory. It backs the "memory"
// database driver and the handler tests.
type MemoryStore struct {
	mu         sync.RWMutex
	sessions   map[string]*services.AdminSession
	roles      []*services.UserRole
	recordings []*services.Recording
	whitelist  map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:  map[string]*services.AdminSession{},
		whitelist: map[string]bool{},
	}
}

func (s *MemoryStore) InsertSession(ctx context.Context, sess *services.AdminSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.Token]; ok {
		return errors.New("duplicate session token")
	}
	cp := *sess
	s.sessions[sess.Token] = &cp
	return nil
}

func (s *MemoryStore) GetSession(ctx context.Context, token string) (*services.AdminSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *MemoryStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for tok, sess := range s.sessions {
		if !sess.Active(now) {
			delete(s.sessions, tok)
			n++
		}
	}
	return n, nil
}

// ExpireSession moves a session deadline; used by operators and tests to
// force expiry.
func (s *MemoryStore) ExpireSession(token string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if ok {
		sess.ExpiresAt = at
	}
	return ok
}

func (s *MemoryStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasRoleLocked(userID, role), nil
}

func (s *MemoryStore) hasRoleLocked(userID, role string) bool {
	for _, r := range s.roles {
		if r.UserID == userID && r.Role == role {
			return true
		}
	}
	return false
}

func (s *MemoryStore) AddRole(ctx context.Context, r *services.UserRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasRoleLocked(r.UserID, r.Role) {
		return errors.New("role already assigned")
	}
	cp := *r
	s.roles = append(s.roles, &cp)
	return nil
}

func (s *MemoryStore) RemoveRole(ctx context.Context, userID, role string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.roles {
		if r.UserID == userID && r.Role == role {
			s.roles = append(s.roles[:i], s.roles[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListRoles(ctx context.Context) ([]*services.UserRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*services.UserRole, 0, len(s.roles))
	for i := len(s.roles) - 1; i >= 0; i-- {
		cp := *s.roles[i]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) InsertFirstAdmin(ctx context.Context, r *services.UserRole) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if existing.Role == services.RoleAdmin {
			return false, nil
		}
	}
	cp := *r
	s.roles = append(s.roles, &cp)
	return true, nil
}

func (s *MemoryStore) InsertRecording(ctx context.Context, r *services.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.recordings = append(s.recordings, &cp)
	return nil
}

func (s *MemoryStore) ListRecordings(ctx context.Context) ([]*services.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*services.Recording, 0, len(s.recordings))
	for i := len(s.recordings) - 1; i >= 0; i-- {
		cp := *s.recordings[i]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) GetRecording(ctx context.Context, id string) (*services.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.recordings {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) AddWhitelistEmail(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whitelist[strings.ToLower(strings.TrimSpace(email))] = true
	return nil
}

func (s *MemoryStore) IsWhitelisted(ctx context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.whitelist[strings.ToLower(strings.TrimSpace(email))], nil
}
