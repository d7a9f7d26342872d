package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/openhearth/backend-donate/internal/auth"
	"github.com/openhearth/backend-donate/internal/common"
	"github.com/openhearth/backend-donate/internal/config"
	"github.com/openhearth/backend-donate/internal/contact"
	"github.com/openhearth/backend-donate/internal/donation"
	"github.com/openhearth/backend-donate/internal/health"
	"github.com/openhearth/backend-donate/internal/obs"
	"github.com/openhearth/backend-donate/internal/ratelimit"
	"github.com/openhearth/backend-donate/internal/security"
	"github.com/openhearth/backend-donate/internal/upload"
	"github.com/openhearth/backend-donate/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	cfg.WarnDegraded(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Missing DATABASE_URL degrades persistence. A URL that is set but
	// unreachable is a deployment error and aborts startup.
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse database config")
		}
		if poolConfig.ConnConfig.RuntimeParams == nil {
			poolConfig.ConnConfig.RuntimeParams = map[string]string{}
		}
		poolConfig.ConnConfig.RuntimeParams["application_name"] = "donate-api"

		pool, err = pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect database")
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Fatal().Err(err).Msg("ping database")
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url")
		}
		redisClient = redis.NewClient(redisOpts)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("ping redis")
		}
	}

	validate := validator.New()

	var processor donation.Processor
	if cfg.StripeSecretKey != "" {
		processor = donation.NewStripe(cfg.StripeSecretKey)
	}
	donationHandler := &donation.Handler{
		Processor:     processor,
		ClientBaseURL: cfg.ClientBaseURL,
		Validate:      validate,
		Logger:        logger,
	}
	if pool != nil {
		donationHandler.Store = &donation.Store{Pool: pool}
	}
	webhookHandler := donation.Webhook{
		Secret:        cfg.StripeWebhookSecret,
		AllowUnsigned: cfg.WebhookAllowUnsigned,
		Logger:        logger,
	}

	authHandler := &auth.Handler{
		ClientBaseURL: cfg.ClientBaseURL,
		CookieSecure:  cfg.AppEnv == "production",
		Logger:        logger,
	}
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		authHandler.OAuth = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.OAuthCallbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}
	if pool != nil {
		authHandler.Users = &user.Store{Pool: pool}
	}
	if redisClient != nil {
		authHandler.Sessions = auth.RedisSessions{Client: redisClient, TTL: cfg.SessionTTL}
	}

	contactHandler := &contact.Handler{Validate: validate, Logger: logger}
	if pool != nil {
		contactHandler.Store = &contact.Store{Pool: pool}
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.Fatal().Err(err).Msg("create upload directory")
	}
	uploadHandler := &upload.Handler{
		Dir:      cfg.UploadDir,
		MaxBytes: cfg.UploadMaxBytes,
		Logger:   logger,
	}

	limitByIP := func(scope string) ratelimit.Handler {
		return ratelimit.Handler{
			Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:"},
			Config: ratelimit.Config{
				Key:    func(r *http.Request) string { return scope + ":" + common.ClientIP(r) },
				Window: cfg.RateLimitWindow,
				Max:    cfg.RateLimitMax,
			},
			OnError: func(err error) {
				logger.Error().Err(err).Msg("rate limiter unavailable")
			},
		}
	}
	donateLimiter := limitByIP("donate")
	contactLimiter := limitByIP("contact")

	buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
	httpMetrics := obs.NewHTTPMetrics("donate", buckets, nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    500 * time.Millisecond,
		RedisTimeout: 300 * time.Millisecond,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	// Body-limited JSON endpoints. The limiter replays the exact bytes it
	// read, so webhook signature verification still sees the raw payload.
	r.Group(func(g chi.Router) {
		g.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
		g.With(donateLimiter.Middleware).Post("/payment-intent", donationHandler.PaymentIntent)
		g.With(donateLimiter.Middleware).Post("/create-checkout-session", donationHandler.CheckoutSession)
		g.Post("/webhook", webhookHandler.Handle)
		g.With(contactLimiter.Middleware).Post("/contact", contactHandler.Submit)
	})

	r.Post("/upload", uploadHandler.Upload)
	r.Handle("/uploads/*", upload.FileServer(cfg.UploadDir))

	r.With(authHandler.RequireAuth).Get("/donations", donationHandler.List)

	r.Route("/auth", func(a chi.Router) {
		a.Get("/google", authHandler.Login)
		a.Get("/google/callback", authHandler.Callback)
		a.With(authHandler.RequireAuth).Get("/me", authHandler.Me)
		a.Post("/logout", authHandler.Logout)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

// readinessChecker probes the dependencies the deployment actually runs with.
// A dependency left unconfigured counts as ready; the process already warned
// about the degraded feature at startup.
type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
