package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	cartcache "github.com/smartdepot/storefront/internal/cart/cache"
	"github.com/smartdepot/storefront/internal/cart/poller"
	cartrepo "github.com/smartdepot/storefront/internal/cart/repository"
	cartsvc "github.com/smartdepot/storefront/internal/cart/service"
	"github.com/smartdepot/storefront/internal/config"
	healthgrpc "github.com/smartdepot/storefront/internal/grpc"
	h "github.com/smartdepot/storefront/internal/http"
	"github.com/smartdepot/storefront/internal/metrics"
	"github.com/smartdepot/storefront/internal/notify"
	"github.com/smartdepot/storefront/internal/payment"
	"github.com/smartdepot/storefront/internal/publisher"
	"github.com/smartdepot/storefront/internal/repository"
	"github.com/smartdepot/storefront/internal/service"
	"github.com/smartdepot/storefront/pkg/logger"
)

func serveCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run migrations and serve the HTTP API, health checks and event workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	log, err := logger.New(cfg.Service.Name, cfg.Service.Env, cfg.Service.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres: catalog, orders, returns, outbox
	cred := credentials(cfg)
	repo, err := repository.NewRepository(cred, log)
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.RunMigrations(cred); err != nil {
		return err
	}
	log.Info("migrations applied")

	// MongoDB + Redis: carts
	connectCtx, connectCancel := context.WithTimeout(ctx, 15*time.Second)
	mongoDB, err := cartrepo.ConnectMongoDB(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database)
	connectCancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
			log.Warn("mongo disconnect failed", zap.Error(err))
		}
	}()

	cartRepo := cartrepo.NewMongoRepository(mongoDB)
	if err := cartRepo.EnsureIndexes(ctx); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	defer rdb.Close()
	cartCache := cartcache.NewRedisCache(rdb)
	cartService := cartsvc.NewCartService(cartRepo, cartCache, repo)

	// Kafka: outbox publisher and the consumer that clears carts after checkout
	outbox := publisher.NewOutboxPoller(repo, log, cfg.Kafka.OutboxTick, cfg.Kafka.Topic, cfg.Kafka.Brokers...)
	defer func() {
		if err := outbox.Close(); err != nil {
			log.Warn("outbox writer close failed", zap.Error(err))
		}
	}()
	go outbox.Run(ctx)

	cartCleaner := poller.NewPoller(cartRepo, cartCache, log, cfg.Kafka.Topic, cfg.Kafka.ConsumerGroup, cfg.Kafka.Brokers...)
	defer cartCleaner.Close()
	go cartCleaner.Run(ctx)

	// Workflows
	m := metrics.New()
	gateway := payment.NewHTTPGateway(payment.Config{
		BaseURL:   cfg.Payment.BaseURL,
		SecretKey: cfg.Payment.SecretKey,
		Timeout:   cfg.Payment.Timeout,
	}, log)
	notifier := newNotifier(cfg, log)

	checkout := service.NewCheckoutService(repo, cartService, gateway, notifier, m, service.CheckoutConfig{
		Currency:   cfg.Payment.Currency,
		SuccessURL: cfg.Payment.SuccessURL,
		CancelURL:  cfg.Payment.CancelURL,
	})
	returns := service.NewReturnsService(repo, gateway, notifier, m)

	// gRPC health checks
	health := healthgrpc.NewHealthServer(log, 10*time.Second, map[string]healthgrpc.Check{
		"postgres": repo.Ping,
		"mongo": func(ctx context.Context) error {
			return cartrepo.Ping(ctx, mongoDB)
		},
		"redis": func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	})
	lis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPC.Port, err)
	}
	go health.Run(ctx)
	go func() {
		log.Info("gRPC health server starting", zap.String("port", cfg.GRPC.Port))
		if err := health.Serve(lis); err != nil {
			log.Error("gRPC server error", zap.Error(err))
		}
	}()

	// HTTP API
	router := h.NewRouter(h.RouterDeps{
		Orders:           checkout,
		Payments:         checkout,
		Returns:          returns,
		Cart:             cartService,
		Products:         repo,
		Auth:             h.NewAuthenticator(cfg.Auth.JWTSecret),
		Metrics:          m,
		Log:              log,
		WebhookSecret:    cfg.Payment.WebhookSecret,
		WebhookTolerance: cfg.Payment.WebhookTolerance,
		RequestTimeout:   cfg.HTTP.RequestTimeout,
		MaxBodySize:      cfg.HTTP.MaxRequestBodySize,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := startHTTP(srv, log)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	runErr := waitForStop(quit, serverErr, log)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	health.Stop()
	cancel()

	log.Info("server exited")
	return runErr
}

// startHTTP serves in the background; a failure other than a requested
// shutdown is delivered on the returned channel.
func startHTTP(srv *http.Server, log *zap.Logger) <-chan error {
	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	return serverErr
}

// waitForStop returns nil on a shutdown signal and the server's error if it
// stopped on its own.
func waitForStop(quit <-chan os.Signal, serverErr <-chan error, log *zap.Logger) error {
	select {
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
		return nil
	case err := <-serverErr:
		log.Error("HTTP server error", zap.Error(err))
		return fmt.Errorf("http server: %w", err)
	}
}

func newNotifier(cfg *config.Config, log *zap.Logger) notify.Notifier {
	if cfg.SMTP.Host == "" {
		log.Warn("SMTP_HOST not set, emails are logged instead of sent")
		return notify.NewLogNotifier(log)
	}
	return notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}
