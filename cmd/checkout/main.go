package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/whatsagent/landing/cmd/checkout/config"
	"github.com/whatsagent/landing/cmd/checkout/controller"
	"github.com/whatsagent/landing/cmd/checkout/db"
	"github.com/whatsagent/landing/cmd/checkout/rest"
	"github.com/whatsagent/landing/cmd/checkout/staging"
	checkoutstream "github.com/whatsagent/landing/cmd/checkout/stream"
	icontext "github.com/whatsagent/landing/context"
	"github.com/whatsagent/landing/internal/deal"
	"github.com/whatsagent/landing/internal/email"
	"github.com/whatsagent/landing/internal/experiment"
	"github.com/whatsagent/landing/internal/healthz"
	ihttp "github.com/whatsagent/landing/internal/http"
	"github.com/whatsagent/landing/internal/metrics"
	"github.com/whatsagent/landing/internal/stream"
	istripe "github.com/whatsagent/landing/internal/stripe"
	itime "github.com/whatsagent/landing/internal/time"
	"github.com/whatsagent/landing/internal/visitor"

	redisv8 "github.com/go-redis/redis/v8"
	"github.com/mailgun/mailgun-go/v4"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run())
}

const (
	ecExit = iota
	ecFailure
	ecDatabaseConnection
	ecMigration
	ecRedisConnection
	ecStreamInit
	ecConfiguration
)

func run() int {
	ctx, cancel := icontext.WithSignal(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg := config.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("[Startup] Connecting to DB ...")
	dbconn, err := db.Open(logger, cfg.DSN())
	if err != nil {
		logger.Error(
			"[Startup] Failed to initialize database connection.",
			zap.Error(err),
		)
		return ecDatabaseConnection
	}
	logger.Info("[Startup] Connected to DB.")

	logger.Info("[Startup] Migrating DB ...")
	if err := db.Migrate(dbconn, cfg.Migrations()); err != nil {
		logger.Error(
			"[Startup] Failed to migrate database model.",
			zap.Error(err),
		)
		return ecMigration
	}
	logger.Info("[Startup] Migrated DB.")

	logger.Info("[Startup] Connecting to Redis ...")
	rdb := redisv8.NewClient(&redisv8.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword(),
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error(
			"[Startup] Failed to initialize Redis client.",
			zap.Error(err),
		)
		return ecRedisConnection
	}
	logger.Info("[Startup] Connected to Redis.")

	logger.Info("[Startup] Initializing event stream ...")
	eventStream, err := stream.Init(ctx, logger, rdb, stream.Config{
		Stream: stream.DefaultStream,
		Group:  cfg.StreamGroup(),
		MaxLen: cfg.StreamMaxLen(),
	})
	if err != nil {
		logger.Error(
			"[Startup] Failed to initialize event stream.",
			zap.Error(err),
		)
		return ecStreamInit
	}
	logger.Info("[Startup] Initialized event stream.")

	dealClock, err := deal.NewClock(cfg.FirstDealWindow(), cfg.FinalDealWindow())
	if err != nil {
		logger.Error(
			"[Startup] Invalid deal windows.",
			zap.Error(err),
		)
		return ecConfiguration
	}

	sc := &client.API{}
	sc.Init(cfg.StripeKey(), nil)
	stripe := istripe.New(
		sc.CheckoutSessions,
		sc.PaymentIntents,
		sc.TaxCalculations,
		sc.TaxTransactions,
		sc.Customers,
		istripe.WebhookConfig{
			Secret:                   cfg.StripeWebhookSecret(),
			IgnoreAPIVersionMismatch: cfg.StripeIgnoreAPIVersionMismatch(),
		},
	)

	store := db.NewStore(dbconn)
	stagingClient := staging.NewClient(rdb)
	visitors := visitor.NewStore(rdb, cfg.VisitorRetention())
	experiments := experiment.NewManager(visitors)
	emailer := email.NewMailgunEmailer(
		mailgun.NewMailgun(cfg.MailgunDomain(), cfg.MailgunAPIKey()),
		cfg.EmailFrom(),
	)
	m := metrics.New()

	healthzHTTP := healthz.NewHTTP(
		func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		store.Ping,
	)

	logger.Info("[Startup] Creating controller ...")
	ctrl := controller.New(logger, stripe, stagingClient, itime.Time{})
	logger.Info("[Startup] Created controller.")

	logger.Info("[Startup] Creating REST API ...")
	api := rest.NewAPI(
		logger,
		ctrl,
		experiments,
		visitors,
		dealClock,
		itime.Time{},
		stripe,
		eventStream,
		healthzHTTP,
		m,
		rest.Options{
			SuccessURL: cfg.SuccessURL(),
			CancelURL:  cfg.CancelURL(),
			Cookie: ihttp.CookieOptions{
				Domain:   cfg.CookieDomain(),
				Secure:   cfg.CookieSecure(),
				SameSite: http.SameSiteLaxMode,
				MaxAge:   cfg.VisitorRetention(),
			},
		},
	)
	logger.Info("[Startup] Created REST API.")

	handler := checkoutstream.NewHandler(
		logger,
		stagingClient,
		store,
		stripe,
		eventStream,
		emailer,
		m,
		checkoutstream.WithMaxDeliveries(cfg.StreamMaxDeliveries()),
	)

	srv := http.Server{
		Handler:      api.Mux,
		Addr:         fmt.Sprintf(":%d", cfg.Port()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("[Startup] Launching stream handler.")
		if err := handler.Launch(ctx); err != nil {
			return fmt.Errorf("stream handler: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Sugar().Infof("[Startup] checkout API listening at :%d", cfg.Port())
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	})

	// Wait for the group context to close. Then gracefully shutdown the
	// http API.
	g.Go(func() error {
		<-ctx.Done()
		healthzHTTP.Sick()

		if sig := icontext.Signal(ctx); sig != nil {
			logger.Info("[Shutdown] Received signal.", zap.Stringer("signal", sig))
		} else {
			logger.Info("[Shutdown] Component exited, shutting down.")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	healthzHTTP.Healthy()

	if err := g.Wait(); err != nil {
		logger.Error("[Shutdown] checkout exited with error.", zap.Error(err))
		return ecFailure
	}
	logger.Info("[Shutdown] checkout exited.")
	return ecExit
}
