// @title Tutorbook API
// @version 1.0
// @description Tutoring slot booking with single-use sign-in handoff.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
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

	"tutorbook/api/routes"
	_ "tutorbook/docs"
	"tutorbook/internal/auth"
	"tutorbook/internal/bans"
	"tutorbook/internal/bookings"
	"tutorbook/internal/notifications"
	"tutorbook/internal/shared/config"
	"tutorbook/internal/shared/database"
	"tutorbook/internal/shared/middleware"
	"tutorbook/internal/slots"
	"tutorbook/internal/sso"
	"tutorbook/pkg/atomicstore"
	"tutorbook/pkg/cache"
	"tutorbook/pkg/logger"
	"tutorbook/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)
	logger.SetDefault(logger.NewWithLevel(os.Stdout, cfg.LogLevel))
	appLogger := logger.GetDefault()

	if envErr != nil {
		appLogger.Info("No .env file found, using system environment variables")
	} else {
		appLogger.Info("Loaded .env file")
	}

	if err := cfg.Validate(); err != nil {
		appLogger.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	location, err := time.LoadLocation(cfg.Scheduling.Timezone)
	if err != nil {
		appLogger.Error("invalid business timezone", slog.Any("error", err))
		os.Exit(1)
	}
	template, err := slots.ParseTemplate(cfg.Scheduling.WeeklyTemplate)
	if err != nil {
		appLogger.Error("invalid weekly template", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("failed to connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Conditional-write scripts back every slot, nonce and rate-limit update
	store := atomicstore.NewRedisStore(db.Redis, cfg.Redis.KeyPrefix, cfg.Redis.OpTimeout)
	preloadCtx, preloadCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := store.PreloadScripts(preloadCtx); err != nil {
		appLogger.Warn("failed to preload store scripts, loading on first use", slog.Any("error", err))
	}
	preloadCancel()

	ledger := slots.NewLedger(store, cache.NewService(db.Redis, cfg.Redis.KeyPrefix)).
		WithListingTTL(cfg.Redis.CacheTTL)

	publisher := notifications.NewPublisher(newNotificationProducer(cfg, appLogger), notifications.Topics{
		Booking:  cfg.Kafka.BookingTopic,
		Operator: cfg.Kafka.OperatorTopic,
	}, location)
	defer func() {
		if err := publisher.Close(); err != nil {
			appLogger.Error("Error closing notification producer", slog.Any("error", err))
		}
	}()

	generator := slots.NewGenerator(ledger, slots.GeneratorConfig{
		OwnerID:           cfg.Scheduling.TutorID,
		LocationType:      cfg.Scheduling.LocationType,
		LocationValue:     cfg.Scheduling.LocationValue,
		WeeksAhead:        cfg.Scheduling.WeeksAhead,
		LowInventoryFloor: cfg.Scheduling.LowInventoryFloor,
		Location:          location,
		Template:          template,
	}, publisher)

	rateLimiter := ratelimit.NewRateLimiter(store, rateLimitConfig(cfg))
	appLogger.Info("Rate limiter initialized",
		slog.Bool("enabled", cfg.RateLimit.Enabled),
		slog.Int("bypass_identities", len(cfg.RateLimit.BypassEmails)),
	)

	banService := bans.NewService(bans.NewRepository(db.PostgreSQL))
	bookingService := bookings.NewService(bookings.NewRepository(db.PostgreSQL), ledger, rateLimiter, publisher, banService, location)

	guard := sso.NewNonceGuard(store, sso.Config{
		Secret:           []byte(cfg.SSO.Secret),
		ClockSkew:        cfg.SSO.ClockSkew,
		MaxTokenLength:   cfg.SSO.MaxTokenLength,
		AllowedProviders: cfg.SSO.AllowedProviders,
		AllowedOrigin:    cfg.SSO.AllowedOrigin,
	})

	// Background jobs: each run is claimed in the shared store, so only one
	// instance does the work
	jobsCtx, jobsCancel := context.WithCancel(context.Background())
	defer jobsCancel()

	if cfg.Scheduling.MaintenanceEnabled {
		maintenance := slots.NewJobProcessor(generator, store, &slots.JobConfig{
			MaintenanceInterval: cfg.Scheduling.MaintenanceInterval,
		})
		maintenance.Start(jobsCtx)
		defer maintenance.Stop()
	}

	reminders := bookings.NewReminderJob(bookingService, store, nil)
	reminders.Start(jobsCtx)
	defer reminders.Stop()

	router := setupRouter(cfg, db, rateLimiter, routes.Dependencies{
		Store:     store,
		Ledger:    ledger,
		Generator: generator,
		Bookings:  bookingService,
		Bans:      banService,
		Guard:     guard,
		Issuer:    auth.NewTokenIssuer(cfg.JWT),
	})

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("api_base", cfg.GetAPIBasePath()),
			slog.String("version", Version),
			slog.String("commit", GitCommit),
			slog.String("built", BuildTime),
			slog.String("timezone", location.String()),
			slog.Bool("kafka", cfg.Kafka.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

func setupRouter(cfg *config.Config, db *database.DB, rateLimiter *ratelimit.RateLimiter, deps routes.Dependencies) *gin.Engine {
	engine := gin.New()
	appLogger := logger.GetDefault()

	engine.Use(middleware.RequestLogger(appLogger), gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Verified callers are identified before rate limiting so bypass
	// identities can skip it
	engine.Use(middleware.OptionalAuthWithConfig(cfg))
	if cfg.RateLimit.Enabled {
		engine.Use(ratelimit.Middleware(rateLimiter))
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.NewRouter(cfg, db, deps).SetupRoutes(engine)

	return engine
}

// rateLimitConfig maps the configured tier table onto limiter policies
func rateLimitConfig(cfg *config.Config) *ratelimit.Config {
	tiers := map[ratelimit.Tier]config.TierLimit{
		ratelimit.TierGlobal:     cfg.RateLimit.Global,
		ratelimit.TierAuth:       cfg.RateLimit.Auth,
		ratelimit.TierBooking:    cfg.RateLimit.Booking,
		ratelimit.TierAdmin:      cfg.RateLimit.Admin,
		ratelimit.TierSlots:      cfg.RateLimit.Slots,
		ratelimit.TierAdminLogin: cfg.RateLimit.AdminLogin,
	}

	policies := make(map[ratelimit.Tier]ratelimit.Policy, len(tiers))
	for tier, limit := range tiers {
		policies[tier] = ratelimit.Policy{
			Limit:   limit.Limit,
			Window:  limit.Window,
			Message: ratelimit.DefaultMessages[tier],
		}
	}

	return &ratelimit.Config{
		Enabled:          cfg.RateLimit.Enabled,
		Policies:         policies,
		BypassIdentities: cfg.RateLimit.BypassEmails,
	}
}

// newNotificationProducer connects to Kafka when enabled and falls back to
// logging notifications
func newNotificationProducer(cfg *config.Config, appLogger *logger.Logger) notifications.NotificationProducer {
	if !cfg.Kafka.Enabled {
		appLogger.Info("Kafka disabled, notifications will be logged only")
		return notifications.NewLogProducer()
	}

	producerConfig := notifications.DefaultKafkaProducerConfig()
	producerConfig.Brokers = cfg.Kafka.Brokers
	producer, err := notifications.NewKafkaNotificationProducer(producerConfig)
	if err != nil {
		appLogger.Error("Failed to connect to Kafka, notifications will be logged only", slog.Any("error", err))
		return notifications.NewLogProducer()
	}

	appLogger.Info("Kafka notification producer initialized", slog.Any("brokers", cfg.Kafka.Brokers))
	return producer
}
