package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/domain"
	h "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/publisher"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/service"
	"github.com/fjod/storefront/pkg/logger"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(logger.Options{Service: "storefront", Env: cfg.AppEnv, Level: cfg.LogLevel})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("storefront stopped", zap.Error(err))
	}
	log.Info("server exited")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	products, closeSource, err := loadProducts(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	cat, err := catalog.New(products)
	if err != nil {
		return errors.Wrap(err, "build catalog")
	}
	log.Info("catalog loaded", zap.String("source", cfg.CatalogSource), zap.Int("products", cat.Len()))

	opts := []service.CheckoutOption{
		service.WithCheckoutLogger(log),
		service.WithCurrency(cfg.Currency),
	}
	if len(cfg.KafkaBrokers) > 0 {
		pub := publisher.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
		defer func() {
			if err := pub.Close(); err != nil {
				log.Warn("failed to close kafka publisher", zap.Error(err))
			}
		}()
		opts = append(opts, service.WithPublisher(pub))
	}

	// A nil provider leaves checkout disabled; the endpoint answers 400.
	var provider service.PaymentProvider
	if cfg.PaymentConfigured() {
		stripeOpts := []payment.StripeOption{payment.WithLogger(log)}
		if cfg.StripeAPIURL != "" {
			stripeOpts = append(stripeOpts, payment.WithAPIURL(cfg.StripeAPIURL))
		}
		provider = payment.NewBreakerProvider(
			payment.NewStripeProvider(cfg.StripeSecretKey, stripeOpts...),
			payment.BreakerSettings{Name: "stripe", Logger: log},
		)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, checkout is disabled")
	}
	checkout := service.NewCheckoutService(cat, provider, opts...)
	// Runs after the server has shut down and before the publisher closes.
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := checkout.Drain(drainCtx); err != nil {
			log.Warn("checkout events still in flight", zap.Error(err))
		}
	}()

	router := h.NewRouter(h.RouterConfig{
		Products:       h.NewProductHandler(cat),
		Checkout:       h.NewCheckoutHandler(checkout, cfg.RequestTimeout, cfg.MaxRequestBodySize, log),
		Logger:         log,
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("storefront starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server error")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "server forced to shutdown")
		}
		return nil
	})

	return g.Wait()
}

// loadProducts reads the catalog once at startup from the configured source.
func loadProducts(ctx context.Context, cfg *config.Config) ([]domain.Product, func(), error) {
	noop := func() {}

	switch cfg.CatalogSource {
	case "", "json":
		products, err := repository.NewJSONSource(cfg.CatalogPath).GetAllProducts(ctx)
		return products, noop, err

	case repository.DriverSQLite, repository.DriverPostgres:
		dsn := cfg.CatalogDSN
		if dsn == "" && cfg.CatalogSource == repository.DriverSQLite {
			dsn = "catalog.db"
		}
		repo, err := repository.Open(ctx, cfg.CatalogSource, dsn)
		if err != nil {
			return nil, noop, err
		}
		closeRepo := func() { _ = repo.Close() }

		if err := repo.RunMigrations(); err != nil {
			closeRepo()
			return nil, noop, err
		}
		products, err := repo.GetAllProducts(ctx)
		if err != nil {
			closeRepo()
			return nil, noop, err
		}
		return products, closeRepo, nil
	}

	return nil, noop, errors.Wrap(repository.ErrUnsupportedDriver, cfg.CatalogSource)
}
