package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/soaringjerry/Vox/internal/api"
	"github.com/soaringjerry/Vox/internal/config"
	dbstore "github.com/soaringjerry/Vox/internal/db"
	"github.com/soaringjerry/Vox/internal/services"
	"github.com/soaringjerry/Vox/internal/storage"
)

const shutdownTimeout = 10 * time.Second

type deps struct {
	store    api.Store
	sessions services.SessionStore
	blobs    services.BlobStore
	local    *storage.LocalStore
	closers  []func() error
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

func buildDeps(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*deps, error) {
	d := &deps{}

	switch cfg.Database.Driver {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		d.store = api.NewMemoryStore()
	default:
		store, conn, err := dbstore.OpenSQLite(cfg.Database.Path, cfg.Database.MigrationsDir, logger)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, conn.Close)
		d.store = store
	}

	d.sessions = d.store
	if cfg.Sessions.Backend == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Sessions.RedisAddr,
			Password: cfg.Sessions.RedisPassword,
			DB:       cfg.Sessions.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			d.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		d.closers = append(d.closers, rdb.Close)
		d.sessions = dbstore.NewRedisSessionStore(rdb)
	}

	switch cfg.Storage.Backend {
	case "s3":
		s3store, err := storage.NewS3Store(ctx, storage.S3Config{
			Region:          cfg.Storage.S3Region,
			Endpoint:        cfg.Storage.S3Endpoint,
			AccessKeyID:     cfg.Storage.S3AccessKey,
			SecretAccessKey: cfg.Storage.S3SecretKey,
			Bucket:          cfg.Storage.Bucket,
		}, logger)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.blobs = s3store
	default:
		key := []byte(cfg.Storage.SigningKey)
		if len(key) == 0 {
			key = make([]byte, 32)
			if _, err := rand.Read(key); err != nil {
				d.Close()
				return nil, fmt.Errorf("generate signing key: %w", err)
			}
			logger.Warn("storage.signing_key not set; signed URLs will not survive a restart")
		}
		local, err := storage.NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.Bucket, cfg.Server.PublicURL, key, logger)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.local = local
		d.blobs = local
	}
	return d, nil
}

func newHandler(cfg *config.Config, d *deps, logger *zap.Logger) (*api.Router, http.Handler) {
	router := api.NewRouter(api.Config{
		Store:              d.store,
		Sessions:           d.sessions,
		Blobs:              d.blobs,
		Bucket:             cfg.Storage.Bucket,
		RecordingsPassword: cfg.Auth.RecordingsPassword,
		SetupSecret:        cfg.Auth.SetupSecret,
		SessionTTL:         cfg.Auth.SessionTTL,
		SignedURLTTL:       cfg.Storage.SignedURLTTL,
		Logger:             logger,
	})
	mux := http.NewServeMux()
	router.Register(mux)
	if d.local != nil {
		mux.Handle(storage.SignPrefix, d.local.Handler())
	}
	if cfg.Server.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.Server.StaticDir)))
	}
	return router, router.Handler(mux)
}

// serve runs the HTTP server and the session sweeper until ctx is cancelled.
func serve(ctx context.Context, ln net.Listener, cfg *config.Config, logger *zap.Logger) error {
	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer d.Close()

	router, handler := newHandler(cfg, d, logger)
	if err := router.WhitelistService().Seed(ctx, cfg.Auth.Whitelist); err != nil {
		_ = ln.Close()
		return fmt.Errorf("seed whitelist: %w", err)
	}
	if cfg.Auth.RecordingsPassword == "" {
		logger.Warn("auth.recordings_password not set; verify-password will answer 500")
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		err := router.SessionService().RunSweeper(gctx, cfg.Auth.SweepInterval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return g.Wait()
}
