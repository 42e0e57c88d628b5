package services

import (
	"context"
	"testing"
)

type whitelistStubStore struct {
	emails map[string]bool
}

func (s *whitelistStubStore) AddWhitelistEmail(ctx context.Context, email string) error {
	if s.emails == nil {
		s.emails = map[string]bool{}
	}
	s.emails[email] = true
	return nil
}

func (s *whitelistStubStore) IsWhitelisted(ctx context.Context, email string) (bool, error) {
	return s.emails[email], nil
}

func TestWhitelistSeedAndCheck(t *testing.T) {
	store := &whitelistStubStore{}
	svc := NewWhitelistService(store, nil)
	ctx := context.Background()

	if err := svc.Seed(ctx, []string{" Admin@Example.com ", ""}); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	ok, err := svc.Check(ctx, "admin@example.COM")
	if err != nil || !ok {
		t.Fatalf("expected whitelisted, got %v, %v", ok, err)
	}
	ok, err = svc.Check(ctx, "someone@example.com")
	if err != nil || ok {
		t.Fatalf("expected not whitelisted, got %v, %v", ok, err)
	}
	if _, err := svc.Check(ctx, "  "); !HasCode(err, ErrorInvalid) {
		t.Fatalf("expected invalid for blank email, got %v", err)
	}
}
