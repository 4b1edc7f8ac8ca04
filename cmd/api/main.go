package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/crypto/bcrypt"

	"eventhub/config"
	"eventhub/internal/adapters/auth"
	"eventhub/internal/adapters/email"
	"eventhub/internal/adapters/metrics"
	"eventhub/internal/adapters/queue"
	"eventhub/internal/adapters/realtime"
	"eventhub/internal/adapters/storage"
	httpdelivery "eventhub/internal/delivery/http"
	"eventhub/internal/delivery/http/controllers"
	"eventhub/internal/delivery/http/middleware"
	"eventhub/internal/repository/mongodb"
	"eventhub/internal/repository/postgres"
	"eventhub/internal/services"
	"eventhub/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// @title eventhub API
// @version 1.0
// @description Community events with superadmin approval, public registration, notifications and reports.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// Stores
	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("postgres connected")

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer func() {
		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dcancel()
		if err := mongoClient.Disconnect(dctx); err != nil {
			logger.Warn("mongo disconnect failed", "err", err)
		}
	}()
	if err := mongoClient.Ping(pingCtx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	mongoDB := mongoClient.Database(cfg.MongoDB)
	if err := mongodb.EnsureIndexes(pingCtx, mongoDB); err != nil {
		return err
	}
	logger.Info("mongo connected", "database", cfg.MongoDB)

	redisClient, err := realtime.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	logger.Info("redis connected")

	// Adapters
	promMetrics := metrics.New(prometheus.NewRegistry())
	pusher := realtime.NewRedisPusher(redisClient, logger)
	images, err := storage.NewImageStore(storage.CloudinaryConfig{
		CloudName: cfg.Cloudinary.CloudName,
		APIKey:    cfg.Cloudinary.APIKey,
		APISecret: cfg.Cloudinary.APISecret,
		Folder:    cfg.Cloudinary.Folder,
	})
	if err != nil {
		return err
	}
	if cfg.Cloudinary.CloudName == "" {
		logger.Warn("cloudinary not configured, event image uploads are disabled")
	}

	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Email.Provider,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		SES: email.SESConfig{
			Region:             cfg.Email.AWSRegion,
			AccessKeyID:        cfg.Email.AWSAccessKeyID,
			SecretAccessKey:    cfg.Email.AWSSecretAccessKey,
			InsecureSkipVerify: cfg.Email.InsecureSkipVerify,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("create mailer: %w", err)
	}
	renderer, err := email.NewTemplateRenderer()
	if err != nil {
		return fmt.Errorf("load email templates: %w", err)
	}

	outbound := mailer
	var emailWorker *worker.EmailWorker
	if cfg.UsesEmailQueue() {
		rmq, err := queue.NewRabbitMQ(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue, logger)
		if err != nil {
			return err
		}
		defer rmq.Close()
		outbound = email.NewQueuedMailer(rmq)
		emailWorker = worker.NewEmailWorker(rmq, mailer, logger)
		emailWorker.Start(ctx)
		logger.Info("email queue enabled", "queue", cfg.RabbitMQ.Queue)
	}

	// Repositories and services
	userRepo := postgres.NewUserRepository(db)
	codeRepo := postgres.NewVerificationCodeRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	eventRepo := mongodb.NewEventRepository(mongoDB)

	timeout := cfg.ContextTimeout
	emailService := services.NewEmailService(outbound, renderer, promMetrics, logger)
	authService := services.NewAuthService(userRepo, codeRepo, auth.NewBcryptHasher(bcrypt.DefaultCost),
		auth.NewJWTIssuer(cfg.JWTSecret), cfg.JWTExpiry, emailService, logger, timeout)
	notificationService := services.NewNotificationService(notificationRepo, userRepo, pusher, promMetrics, logger, timeout)
	eventService := services.NewEventService(eventRepo, notificationService, pusher, images, promMetrics, logger, timeout)
	registrationService := services.NewRegistrationService(eventRepo, emailService, pusher, promMetrics, logger, cfg.AppBaseURL, timeout)
	reportService := services.NewReportService(eventRepo, timeout)
	userService := services.NewUserService(userRepo, eventRepo, timeout)

	if cfg.SuperAdminEmail != "" && cfg.SuperAdminPassword != "" {
		admin, err := authService.EnsureSuperAdmin(ctx, cfg.SuperAdminEmail, cfg.SuperAdminPassword)
		if err != nil {
			return fmt.Errorf("seed superadmin: %w", err)
		}
		logger.Info("superadmin ready", "user_id", admin.ID)
	}

	// HTTP
	deps := httpdelivery.RouterDeps{
		Auth:         controllers.NewAuthController(logger, authService),
		User:         controllers.NewUserController(logger, userService),
		Event:        controllers.NewEventController(logger, eventService),
		Registration: controllers.NewRegistrationController(logger, registrationService, reportService),
		Notification: controllers.NewNotificationController(logger, notificationService, pusher),
		Health:       controllers.NewHealthController(logger, healthChecks(db, mongoClient, redisClient)),
		Verifier:     auth.NewJWTVerifier(cfg.JWTSecret),
		RateLimiter:  middleware.NewRateLimiter(redisClient, cfg.RateLimitRequests, cfg.RateLimitWindow, logger),
		Logger:       logger,
	}
	if cfg.MetricsEnabled {
		deps.Metrics = promMetrics.Handler()
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpdelivery.WithMiddleware(httpdelivery.NewRouter(deps), logger, cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	select {
	case <-signalCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "err", err)
	}
	if emailWorker != nil {
		emailWorker.Stop()
	}
	return runErr
}

func healthChecks(db *sql.DB, mongoClient *mongo.Client, redisClient *redis.Client) map[string]controllers.HealthCheck {
	return map[string]controllers.HealthCheck{
		"postgres": db.PingContext,
		"mongo": func(ctx context.Context) error {
			return mongoClient.Ping(ctx, readpref.Primary())
		},
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}
}
