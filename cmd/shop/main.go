package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/cli"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/service"
	"github.com/fjod/storefront/pkg/client"
	"github.com/fjod/storefront/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.LoadShop()

	log, err := logger.New(logger.Options{Service: "shop", Env: "dev", Level: cfg.LogLevel})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStorage, err := cli.OpenStorage(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "storage:", err)
		return 1
	}
	defer func() {
		if err := closeStorage(); err != nil {
			log.Warn("failed to close storage", zap.Error(err))
		}
	}()

	shop, err := client.New(cfg.ServerURL, client.WithLogger(log))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	store := service.NewCartStore(st, service.WithCartLogger(log))
	app := cli.NewApp(store, shop, log)

	if err := app.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
