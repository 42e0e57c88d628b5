package gate

import (
	"context"
	"strings"

	"github.com/soaringjerry/Vox/internal/session"
)

// IdentitySource reports the signed-in user's email, if any.
type IdentitySource interface {
	Email(ctx context.Context) (string, bool, error)
}

type WhitelistChecker interface {
	CheckWhitelist(ctx context.Context, email string) (bool, error)
}

// WhitelistStrategy allows a signed-in user whose email is on the admin
// whitelist. A failed lookup denies.
type WhitelistStrategy struct {
	Identity  IdentitySource
	Whitelist WhitelistChecker
}

func (s *WhitelistStrategy) Check(ctx context.Context) (Decision, error) {
	email, ok, err := s.Identity.Email(ctx)
	if err != nil || !ok || strings.TrimSpace(email) == "" {
		return Unauthenticated, err
	}
	allowed, err := s.Whitelist.CheckWhitelist(ctx, email)
	if err != nil {
		return Denied, err
	}
	if !allowed {
		return Denied, nil
	}
	return Allowed, nil
}

// StoredIdentity reads the email saved at sign-in from client storage.
type StoredIdentity struct {
	Storage session.Storage
}

const EmailKey = "admin_email"

func (s StoredIdentity) Email(ctx context.Context) (string, bool, error) {
	return s.Storage.Get(EmailKey)
}
