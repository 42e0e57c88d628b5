package main

import (
	"errors"

	"go.uber.org/zap"

	"github.com/soaringjerry/Vox/internal/config"
	dbstore "github.com/soaringjerry/Vox/internal/db"
)

// MigrateIfNeeded opens the configured SQLite database, applying any pending
// migrations, and closes it again. The memory driver has nothing to migrate.
func MigrateIfNeeded(cfg config.DatabaseConfig, logger *zap.Logger) error {
	if cfg.Driver == "memory" {
		logger.Info("memory driver configured; nothing to migrate")
		return nil
	}
	if cfg.Path == "" {
		return errors.New("sqlite path is required")
	}
	_, conn, err := dbstore.OpenSQLite(cfg.Path, cfg.MigrationsDir, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logger.Warn("close sqlite", zap.Error(cerr))
		}
	}()
	logger.Info("migrations applied", zap.String("path", cfg.Path))
	return nil
}
