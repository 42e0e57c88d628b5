package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/soaringjerry/Vox/internal/config"
	"github.com/soaringjerry/Vox/internal/logging"
	"github.com/soaringjerry/Vox/internal/utils"
)

func main() {
	cfgPath := flag.String("config", utils.Env("CONFIG", ""), "path to a config file (yaml, toml or json)")
	migrateOnly := flag.Bool("migrate", false, "apply database migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Server.LogLevel, cfg.Server.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if *migrateOnly {
		if err := MigrateIfNeeded(cfg.Database, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		logger.Fatal("listen", zap.String("addr", cfg.Server.Addr), zap.Error(err))
	}
	logger.Info("Vox server listening", zap.String("addr", ln.Addr().String()))
	if err := serve(ctx, ln, cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
