package session

import (
	"fmt"
	"strconv"
	"time"
)

const (
	TokenKey   = "admin_session_token"
	ExpiresKey = "admin_session_expires"
	FlagKey    = "admin_authenticated"
)

// Context is the session handed to code that acts on behalf of an admin.
type Context struct {
	Token     string
	ExpiresAt time.Time
}

func (c *Context) Valid(now time.Time) bool {
	return c != nil && c.Token != "" && now.Before(c.ExpiresAt)
}

// TokenStore holds a bearer token and its expiry. A token at or past its
// expiry is cleared on read and reported as absent.
type TokenStore struct {
	storage Storage
	now     func() time.Time
}

func NewTokenStore(storage Storage) *TokenStore {
	return &TokenStore{storage: storage, now: time.Now}
}

func (s *TokenStore) Save(token string, expiresAt time.Time) error {
	if token == "" {
		return fmt.Errorf("session: empty token")
	}
	if err := s.storage.Set(TokenKey, token); err != nil {
		return err
	}
	return s.storage.Set(ExpiresKey, expiresAt.UTC().Format(time.RFC3339))
}

// Current returns the stored session, or nil when there is none or it has
// expired. A half-written session is cleared.
func (s *TokenStore) Current() (*Context, error) {
	token, okT, err := s.storage.Get(TokenKey)
	if err != nil {
		return nil, err
	}
	raw, okE, err := s.storage.Get(ExpiresKey)
	if err != nil {
		return nil, err
	}
	if !okT || !okE || token == "" {
		if okT || okE {
			return nil, s.Clear()
		}
		return nil, nil
	}
	expiresAt, err := time.Parse(time.RFC3339, raw)
	if err != nil || !s.now().Before(expiresAt) {
		return nil, s.Clear()
	}
	return &Context{Token: token, ExpiresAt: expiresAt}, nil
}

func (s *TokenStore) Token() (string, bool) {
	c, err := s.Current()
	if err != nil || c == nil {
		return "", false
	}
	return c.Token, true
}

func (s *TokenStore) Clear() error {
	return s.storage.Delete(TokenKey, ExpiresKey)
}

// FlagStore is the expiry-less variant: a single authenticated flag.
type FlagStore struct {
	storage Storage
}

func NewFlagStore(storage Storage) *FlagStore {
	return &FlagStore{storage: storage}
}

func (s *FlagStore) Set(authenticated bool) error {
	if !authenticated {
		return s.storage.Delete(FlagKey)
	}
	return s.storage.Set(FlagKey, "true")
}

func (s *FlagStore) Authenticated() bool {
	v, ok, err := s.storage.Get(FlagKey)
	if err != nil || !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
