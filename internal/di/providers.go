package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/reconhub/auth-service/internal/app"
	"github.com/reconhub/auth-service/internal/config"
	"github.com/reconhub/auth-service/internal/database"
	"github.com/reconhub/auth-service/internal/health"
	"github.com/reconhub/auth-service/internal/http/handler"
	"github.com/reconhub/auth-service/internal/http/middleware"
	"github.com/reconhub/auth-service/internal/http/router"
	"github.com/reconhub/auth-service/internal/observability"
	"github.com/reconhub/auth-service/internal/password"
	"github.com/reconhub/auth-service/internal/repository"
	"github.com/reconhub/auth-service/internal/security"
	"github.com/reconhub/auth-service/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewUserRepository,
	repository.NewCredentialRepository,
	repository.NewPasswordHistoryRepository,
	repository.NewSessionRepository,
	repository.NewOAuthRepository,
	repository.NewVerificationTokenRepository,
)

var SecuritySet = wire.NewSet(
	provideJWTManager,
	provideCookieManager,
)

var ServiceSet = wire.NewSet(
	providePasswordPolicy,
	providePasswordHistory,
	provideAuthAbuseGuard,
	provideCredentialStateResolver,
	provideTokenService,
	provideSessionService,
	service.NewGoogleOAuthProvider,
	provideDevNotifier,
	wire.Bind(new(service.OAuthProvider), new(*service.GoogleOAuthProvider)),
	wire.Bind(new(service.PasswordResetNotifier), new(*service.DevNotifier)),
	wire.Bind(new(service.InitialPasswordNotifier), new(*service.DevNotifier)),
	service.NewOAuthService,
	service.NewAuthService,
	service.NewUserService,
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
	wire.Bind(new(service.UserServiceInterface), new(*service.UserService)),
	wire.Bind(new(service.SessionServiceInterface), new(*service.SessionService)),
)

var HTTPSet = wire.NewSet(
	provideAuthHandler,
	handler.NewUserHandler,
	provideGlobalRateLimiter,
	provideAuthRateLimiter,
	provideForgotRateLimiter,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(provideApp)

type MigrationRunner struct {
	cfg *config.Config
	db  *gorm.DB
}

func NewMigrationRunner(cfg *config.Config, db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{cfg: cfg, db: db}
}

func (m *MigrationRunner) Run() error {
	if err := database.Migrate(m.db); err != nil {
		return err
	}
	fmt.Println("migration complete")
	return nil
}

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg)
}

func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func provideRedisClient(cfg *config.Config) (redis.UniversalClient, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret, cfg.JWTRefreshSecret)
}

func provideCookieManager(cfg *config.Config) *security.CookieManager {
	return security.NewCookieManager(cfg.CookieDomain, cfg.CookieSecure, cfg.CookieSameSite)
}

func providePasswordPolicy(cfg *config.Config) password.Policy {
	return service.PolicyFromConfig(cfg)
}

func providePasswordHistory(cfg *config.Config, historyRepo repository.PasswordHistoryRepository) password.HistoryChecker {
	return service.NewStoredPasswordHistory(historyRepo, cfg.PasswordHistoryLimit)
}

func provideAuthAbuseGuard(cfg *config.Config, redisClient redis.UniversalClient) service.AuthAbuseGuard {
	policy := service.AuthAbusePolicy{
		FreeAttempts: cfg.AuthAbuseFreeAttempts,
		BaseDelay:    cfg.AuthAbuseBaseDelay,
		Multiplier:   2,
		MaxDelay:     cfg.AuthAbuseMaxDelay,
		ResetWindow:  cfg.AuthAbuseResetWindow,
	}
	if redisClient != nil {
		return service.NewRedisAuthAbuseGuard(redisClient, "authabuse", policy)
	}
	return service.NewInMemoryAuthAbuseGuard(policy)
}

func provideCredentialStateResolver(cfg *config.Config, redisClient redis.UniversalClient, credRepo repository.CredentialRepository) *service.CachedCredentialStateResolver {
	var store service.CredentialStateCacheStore
	if redisClient != nil {
		store = service.NewRedisCredentialStateCacheStore(redisClient, "credstate")
	}
	return service.NewCachedCredentialStateResolver(store, credRepo, cfg.CredentialStateCacheTTL)
}

func provideTokenService(cfg *config.Config, jwt *security.JWTManager, sessionRepo repository.SessionRepository) *service.TokenService {
	return service.NewTokenService(jwt, sessionRepo, cfg.RefreshTokenPepper, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
}

func provideSessionService(cfg *config.Config, sessionRepo repository.SessionRepository) *service.SessionService {
	return service.NewSessionService(sessionRepo, cfg.RefreshTokenPepper)
}

func provideDevNotifier(logger *slog.Logger) *service.DevNotifier {
	return service.NewDevNotifier(logger)
}

func provideAuthHandler(authSvc service.AuthServiceInterface, cookieMgr *security.CookieManager, cfg *config.Config) *handler.AuthHandler {
	return handler.NewAuthHandler(authSvc, cookieMgr, cfg.StateSigningSecret, cfg.JWTRefreshTTL)
}

func provideGlobalRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.GlobalRateLimiterFunc {
	if redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, "ratelimit:api")
		return middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.APIRateLimitPerMin,
			time.Minute,
			middleware.FailOpen,
			"api",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.APIRateLimitPerMin, time.Minute).Middleware()
}

func provideAuthRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.AuthRateLimiterFunc {
	if redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, "ratelimit:auth")
		return middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.AuthRateLimitPerMin,
			time.Minute,
			middleware.FailClosed,
			"auth",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.AuthRateLimitPerMin, time.Minute).Middleware()
}

func provideForgotRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.ForgotRateLimiterFunc {
	if redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, "ratelimit:forgot")
		return middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.AuthPasswordForgotRateLimitPerMin,
			time.Minute,
			middleware.FailClosed,
			"forgot",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.AuthPasswordForgotRateLimitPerMin, time.Minute).Middleware()
}

func provideRouterDependencies(
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	jwt *security.JWTManager,
	globalRateLimiter router.GlobalRateLimiterFunc,
	authRateLimiter router.AuthRateLimiterFunc,
	forgotRateLimiter router.ForgotRateLimiterFunc,
	readiness *health.ProbeRunner,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:                authHandler,
		UserHandler:                userHandler,
		JWTManager:                 jwt,
		CORSOrigins:                cfg.CORSAllowedOrigins,
		AuthRateLimitRPM:           cfg.AuthRateLimitPerMin,
		PasswordForgotRateLimitRPM: cfg.AuthPasswordForgotRateLimitPerMin,
		APIRateLimitRPM:            cfg.APIRateLimitPerMin,
		GlobalRateLimiter:          globalRateLimiter,
		AuthRateLimiter:            authRateLimiter,
		ForgotRateLimiter:          forgotRateLimiter,
		Readiness:                  readiness,
		EnableOTelHTTP:             cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideReadinessProbeRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient) *health.ProbeRunner {
	return health.NewProbeRunner(
		cfg.ReadinessProbeTimeout,
		cfg.ServerStartGracePeriod,
		health.NewDBChecker(db),
		health.NewRedisChecker(redisClient),
	)
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	readiness *health.ProbeRunner,
) *app.App {
	if redisClient != nil {
		observability.InstrumentRedisClient(redisClient, logger)
	}
	return app.New(cfg, logger, server, runtime, db, redisClient, readiness)
}
