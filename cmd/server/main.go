package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/Skufu/thyrocheck/internal/auth"
	"github.com/Skufu/thyrocheck/internal/chatbot"
	"github.com/Skufu/thyrocheck/internal/hospitals"
	"github.com/Skufu/thyrocheck/internal/httpapi"
	"github.com/Skufu/thyrocheck/internal/metrics"
	"github.com/Skufu/thyrocheck/internal/prediction"
	"github.com/Skufu/thyrocheck/internal/reference"
	"github.com/Skufu/thyrocheck/internal/store"
	"github.com/Skufu/thyrocheck/internal/thyroid"
)

const devSecretKey = "dev-secret-key-change-me"

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Port        string
	StoreDriver string
	DatabaseURL string
	SQLitePath  string
	ModelPath   string

	SecretKey    string
	SessionTTL   time.Duration
	CookieSecure bool

	RedisURL           string
	HospitalCacheTTL   time.Duration
	NominatimURL       string
	NominatimUserAgent string

	LogLevel slog.Level

	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

func main() {
	gin.SetMode(getEnv("GIN_MODE", "release"))

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func run(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	api, cleanup, err := buildHandler(ctx, cfg, st, logger, m)
	if err != nil {
		return err
	}
	defer cleanup()

	router := setupRouter(st, api, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", server.Addr, "store", cfg.StoreDriver, "model", api.Predictions.Model())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(server, logger)
	})
	return g.Wait()
}

func loadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		StoreDriver:        strings.ToLower(getEnv("STORE_DRIVER", "memory")),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SQLitePath:         getEnv("SQLITE_PATH", "thyroid.db"),
		ModelPath:          os.Getenv("MODEL_PATH"),
		SecretKey:          os.Getenv("SECRET_KEY"),
		RedisURL:           os.Getenv("REDIS_URL"),
		NominatimURL:       getEnv("NOMINATIM_URL", hospitals.DefaultBaseURL),
		NominatimUserAgent: getEnv("NOMINATIM_USER_AGENT", hospitals.DefaultUserAgent),
		AdminUsername:      getEnv("ADMIN_USERNAME", "admin"),
		AdminEmail:         getEnv("ADMIN_EMAIL", "admin@thyroid.com"),
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
	}

	switch cfg.StoreDriver {
	case "memory", "sqlite":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.SecretKey == "" {
		switch getEnv("GIN_MODE", "release") {
		case gin.DebugMode, gin.TestMode:
			cfg.SecretKey = devSecretKey
		default:
			return nil, fmt.Errorf("SECRET_KEY is required in release mode")
		}
	}

	var err error
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SessionTTL == 0 {
		return nil, fmt.Errorf("invalid SESSION_TTL: must be positive")
	}
	if cfg.HospitalCacheTTL, err = durationEnv("HOSPITAL_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.CookieSecure, err = strconv.ParseBool(getEnv("COOKIE_SECURE", "false")); err != nil {
		return nil, fmt.Errorf("invalid COOKIE_SECURE: %w", err)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

func openStore(ctx context.Context, cfg *Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		return store.OpenSQLite(ctx, cfg.SQLitePath)
	case "postgres":
		return store.ConnectPostgres(ctx, cfg.DatabaseURL)
	default:
		return store.NewMemory(), nil
	}
}

// buildHandler wires the services behind the API. The returned cleanup
// releases the Redis connection when one was opened.
func buildHandler(ctx context.Context, cfg *Config, st store.Store, logger *slog.Logger, m *metrics.Metrics) (*httpapi.Handler, func(), error) {
	cleanup := func() {}

	tables, err := reference.Load()
	if err != nil {
		return nil, cleanup, err
	}
	bot, err := chatbot.New()
	if err != nil {
		return nil, cleanup, err
	}

	var cache hospitals.Cache = hospitals.NewMemoryCache()
	if cfg.RedisURL != "" {
		client, err := hospitals.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = func() { _ = client.Close() }
		cache = hospitals.NewRedisCache(client)
	}
	finder := hospitals.NewFinder(
		hospitals.NewClient(cfg.NominatimURL, cfg.NominatimUserAgent, nil),
		hospitals.WithCache(cache, cfg.HospitalCacheTTL),
		hospitals.WithLogger(logger),
		hospitals.WithMetrics(m),
	)

	authSvc := auth.NewService(st, auth.NewTokens(cfg.SecretKey, cfg.SessionTTL), logger)
	if cfg.AdminPassword != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			cleanup()
			return nil, func() {}, err
		}
	}

	classifier := thyroid.Load(cfg.ModelPath, logger)
	predictions := prediction.NewService(classifier, st, tables,
		prediction.WithLogger(logger),
		prediction.WithMetrics(m),
	)

	return httpapi.NewHandler(httpapi.Deps{
		Auth:         authSvc,
		Users:        st,
		Predictions:  predictions,
		Tables:       tables,
		Bot:          bot,
		Hospitals:    finder,
		Logger:       logger,
		SessionTTL:   cfg.SessionTTL,
		SecureCookie: cfg.CookieSecure,
	}), cleanup, nil
}

func setupRouter(db HealthChecker, api *httpapi.Handler, metricsHandler http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Logger(),
		gin.Recovery(),
		limitBodySize(1<<20), // 1MB max body
		cors.New(cors.Config{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			MaxAge:       12 * time.Hour,
		}),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"store":  fmt.Sprintf("unhealthy: %v", err),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"store":  "ok",
		})
	})

	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	api.RegisterRoutes(router)
	return router
}

func shutdown(server *http.Server, logger *slog.Logger) error {
	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
