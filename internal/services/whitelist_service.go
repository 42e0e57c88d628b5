package services

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// WhitelistService answers whether a signed-in user's email may open the
// admin pages.
type WhitelistService struct {
	store  WhitelistStore
	logger *zap.Logger
}

func NewWhitelistService(store WhitelistStore, logger *zap.Logger) *WhitelistService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WhitelistService{store: store, logger: logger}
}

func (s *WhitelistService) Check(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return false, NewInvalidError("email required")
	}
	return s.store.IsWhitelisted(ctx, email)
}

// Seed adds emails that are not yet whitelisted. Blank entries are skipped.
func (s *WhitelistService) Seed(ctx context.Context, emails []string) error {
	for _, e := range emails {
		e = normalizeEmail(e)
		if e == "" {
			continue
		}
		if err := s.store.AddWhitelistEmail(ctx, e); err != nil {
			return err
		}
	}
	if len(emails) > 0 {
		s.logger.Info("whitelist seeded", zap.Int("count", len(emails)))
	}
	return nil
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
