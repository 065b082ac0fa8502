// Package main is the entry point for the MealTrack API server.
//
// It loads configuration, connects the PostgreSQL pool, wires the payment,
// ledger, and analysis services into their HTTP handlers, and serves requests
// through the core chassis (middleware, routing, health checks).
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"mealtrack/internal/analysis"
	"mealtrack/internal/api/handlers"
	"mealtrack/internal/auth"
	"mealtrack/internal/billing"
	"mealtrack/internal/config"
	"mealtrack/internal/core"
	"mealtrack/internal/db"
	"mealtrack/internal/external"
	"mealtrack/internal/queue"
)

// startupTimeout bounds pool creation and AWS config resolution at boot.
const startupTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("mealtrack API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	pool, err := db.NewPool(startupCtx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}

	verifier, err := auth.NewJWTVerifier(cfg.Auth)
	if err != nil {
		pool.Close()
		return fmt.Errorf("creating token verifier: %w", err)
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		pool.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Authenticator = verifier
	srv.HealthProbes = []core.HealthProbe{&db.PingProbe{Pool: pool}}
	srv.OnShutdown(pool.Close)

	// Repositories.
	ledger := db.NewCreditLedgerRepo(pool, logger)
	mealRepo := db.NewMealRepo(pool)
	goalRepo := db.NewGoalRepo(pool)

	// Upstream clients. The vision timeout dominates request latency and is
	// configured independently of the payment client.
	razorpayClient := external.NewRazorpayClient(
		&http.Client{Timeout: 15 * time.Second}, cfg.Razorpay, logger)
	visionClient := external.NewOpenAIVisionClient(
		&http.Client{Timeout: cfg.Vision.Timeout}, cfg.Vision, logger)

	// Billing services.
	catalog := billing.NewStaticCatalog()
	orderSvc := billing.NewOrderService(catalog, razorpayClient, cfg.Razorpay, logger)

	var enqueuer billing.PendingCreditEnqueuer
	if cfg.AWS.PendingCreditQueue != "" {
		producer, err := newPendingCreditProducer(startupCtx, cfg.AWS, logger)
		if err != nil {
			pool.Close()
			return fmt.Errorf("creating pending-credit producer: %w", err)
		}
		enqueuer = producer
	} else {
		logger.Warn("pending-credit queue not configured; ledger failures after verified payments will not be retried")
	}

	paymentVerifier := billing.NewPaymentVerifier(catalog, ledger, cfg.Razorpay, enqueuer, logger)
	analyzer := analysis.NewService(ledger, visionClient, mealRepo, logger)

	// HTTP handlers.
	billingHandler := handlers.NewBillingHandler(
		catalog, orderSvc, paymentVerifier, ledger, srv.Validator, logger)
	mealsHandler := handlers.NewMealsHandler(
		analyzer, mealRepo, goalRepo, srv.Validator, logger)
	goalsHandler := handlers.NewGoalsHandler(goalRepo, srv.Validator, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		billingHandler.RegisterRoutes,
		mealsHandler.RegisterRoutes,
		goalsHandler.RegisterRoutes,
	)

	if secret := cfg.Stripe.WebhookSecret.Unmask(); secret != "" {
		webhookHandler := handlers.NewStripeWebhookHandler(
			&external.StripeVerifier{}, catalog, ledger, secret, logger)
		srv.PublicRouteRegistrars = append(srv.PublicRouteRegistrars, webhookHandler.RegisterRoutes)
	} else {
		logger.Info("stripe webhook secret not configured; webhook route disabled")
	}

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// newPendingCreditProducer builds the SQS producer used to park verified
// payments whose ledger write failed. EndpointURL is set when running
// against LocalStack.
func newPendingCreditProducer(ctx context.Context, awsCfg config.AWSConfig, logger *slog.Logger) (*queue.PendingCreditProducer, error) {
	sdkCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(awsCfg.Region))
	if err != nil {
		return nil, err
	}

	client := sqs.NewFromConfig(sdkCfg, func(o *sqs.Options) {
		if awsCfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(awsCfg.EndpointURL)
		}
	})

	return queue.NewPendingCreditProducer(client, awsCfg, logger), nil
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}
