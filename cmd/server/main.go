package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/yukikurage/edu-project-api/internal/cache"
	"github.com/yukikurage/edu-project-api/internal/config"
	"github.com/yukikurage/edu-project-api/internal/constants"
	"github.com/yukikurage/edu-project-api/internal/database"
	"github.com/yukikurage/edu-project-api/internal/logger"
	"github.com/yukikurage/edu-project-api/internal/realtime"
	"github.com/yukikurage/edu-project-api/internal/repository"
	"github.com/yukikurage/edu-project-api/internal/services"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(cfg.GinMode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	if err := run(cfg, appLogger); err != nil {
		appLogger.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, appLogger *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database and run migrations
	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	if err := database.MigrateDatabase(db); err != nil {
		return err
	}

	taskRepo := repository.NewTaskRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	reminderRepo := repository.NewReminderRepository(db)

	// The notification service is built before the transport exists; the
	// holder rejects deliveries until the hub is installed below.
	channel := realtime.NewHolder()
	notificationService := services.NewNotificationService(notificationRepo, channel, appLogger)

	hub := realtime.NewHub(appLogger)
	var publisher realtime.Publisher = hub
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := realtime.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				appLogger.Warn("Failed to close kafka writer", zap.Error(err))
			}
		}()
		publisher = realtime.NewFanout(appLogger, hub, kafkaPublisher)
		appLogger.Info("Mirroring notifications to kafka",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
		)
	}
	if err := channel.Set(publisher); err != nil {
		return fmt.Errorf("failed to install realtime channel: %w", err)
	}

	schedulerOpts := []services.SchedulerOption{services.WithSweepInterval(cfg.SweepInterval)}
	if cfg.SweepDedupe {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		schedulerOpts = append(schedulerOpts, services.WithDedupStore(cache.NewRedisDedup(rdb, "sweep:")))
	}

	scheduler := services.NewReminderScheduler(reminderRepo, taskRepo, projectRepo, notificationService, appLogger, schedulerOpts...)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	aiService := services.NewAIService(cfg.OpenAIAPIKey)
	if cfg.OpenAIAPIKey == "" {
		appLogger.Warn("OPENAI_API_KEY is not set, exam question drafting is disabled")
	}

	// Initialize Gin router
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(appLogger))

	// Setup session middleware with Redis
	store, err := redisStore.NewStore(
		10,              // Redis pool size
		"tcp",           // network type
		cfg.RedisAddr(), // Redis address from config
		cfg.RedisPassword,
		[]byte(cfg.SessionSecret), // authentication key
	)
	if err != nil {
		return fmt.Errorf("failed to create redis session store: %w", err)
	}
	// Configure session options based on environment
	isProduction := cfg.GinMode == "release"
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	registerRoutes(r, routeDeps{
		auth:          services.NewAuthService(userRepo),
		projects:      services.NewProjectService(projectRepo, userRepo, notificationService, appLogger),
		tasks:         services.NewTaskService(taskRepo, projectRepo, userRepo, notificationService, appLogger),
		notifications: notificationService,
		scheduler:     scheduler,
		ai:            aiService,
		hub:           hub,
		logger:        appLogger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// requestLogger writes one structured line per request.
func requestLogger(appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		appLogger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
