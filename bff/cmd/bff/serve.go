package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/avika-ai/avika-bff/bff/internal/analytics"
	"github.com/avika-ai/avika-bff/bff/internal/audit"
	"github.com/avika-ai/avika-bff/bff/internal/auth"
	"github.com/avika-ai/avika-bff/bff/internal/backend"
	"github.com/avika-ai/avika-bff/bff/internal/bridge"
	"github.com/avika-ai/avika-bff/bff/internal/events"
	"github.com/avika-ai/avika-bff/bff/internal/handlers"
	"github.com/avika-ai/avika-bff/bff/internal/metrics"
	bffmiddleware "github.com/avika-ai/avika-bff/bff/internal/middleware"
	"github.com/avika-ai/avika-bff/bff/internal/proxy"
	"github.com/avika-ai/avika-bff/bff/internal/ratelimit"
	"github.com/avika-ai/avika-bff/bff/internal/server"
	"github.com/avika-ai/avika-bff/bff/migrations"
	"github.com/avika-ai/avika-bff/common/config"
	"github.com/avika-ai/avika-bff/common/database"
	"github.com/avika-ai/avika-bff/common/logging"
	"github.com/avika-ai/avika-bff/common/messaging"
	"github.com/avika-ai/avika-bff/common/messaging/nats"
	"github.com/avika-ai/avika-bff/common/middleware"
	"github.com/avika-ai/avika-bff/common/signing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway (default)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var migrateOnStart bool

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", true, "apply audit migrations before serving")
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting gateway",
		"port", cfg.Server.Port,
		"grpc_address", cfg.Backend.GRPCAddress,
		"version", version,
	)

	// closers run in reverse order once the server has stopped
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()
	closeWith := func(name string, c io.Closer) {
		closers = append(closers, func() {
			if err := c.Close(); err != nil {
				logger.Warn("close failed", "component", name, logging.Error(err))
			}
		})
	}

	conn, err := backend.Dial(cfg.Backend)
	if err != nil {
		return err
	}
	closeWith("grpc", conn)

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = openRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		closeWith("redis", redisClient)
		logger.Info("connected to redis")
	}

	limiter := newRateLimiter(cfg.RateLimit, redisClient)
	closeWith("rate limiter", limiter)

	observers := []bridge.Observer{metrics.StreamObserver{}}

	var sessionsHandler *handlers.SessionsHandler
	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		closeWith("database", db)
		store := audit.NewStore(db, logger)
		observers = append(observers, store)
		sessionsHandler = handlers.NewSessionsHandler(store, logger)
	}

	var broker messaging.Client
	if cfg.NATS.Enabled {
		natsCfg := nats.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.Name = serviceName
		natsCfg.MaxReconnects = cfg.NATS.MaxReconnects
		natsCfg.ReconnectWait = cfg.NATS.ReconnectWait
		client, err := nats.NewClient(natsCfg, logger.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}
		closers = append(closers, func() {
			if err := client.Drain(); err != nil {
				logger.Warn("nats drain failed", logging.Error(err))
			}
		})
		broker = client
		var opts []events.Option
		if cfg.NATS.SigningKey != "" {
			opts = append(opts, events.WithSigner(signing.NewSigner(cfg.NATS.SigningKey)))
		}
		observers = append(observers, events.NewPublisher(client, logger, opts...))
		logger.Info("connected to nats", "url", cfg.NATS.URL)
	}

	analyticsClient := analytics.NewClient(conn, analytics.WithOpenTimeout(cfg.Stream.OpenTimeout))
	b := bridge.New(bridge.AnalyticsOpener(analyticsClient), logger,
		bridge.WithObserver(observers...),
		bridge.WithMaxDuration(cfg.Stream.MaxDuration),
	)
	unary := backend.NewClient(conn, cfg.Backend.RequestTimeout)

	var sessionCache auth.SessionCache = auth.NoopSessionCache{}
	if redisClient != nil {
		sessionCache = auth.NewRedisSessionCache(redisClient, cfg.Redis.SessionTTL)
	}
	authClient := auth.NewClient(cfg.Backend.HTTPBaseURL, cfg.Backend.RequestTimeout)
	sessionProxy := proxy.NewProxy(cfg.Backend.HTTPBaseURL, cfg.Backend.RequestTimeout, logger)

	routerCfg := server.RouterConfig{
		AuthHandler:     handlers.NewAuthHandler(sessionProxy, sessionCache, cfg.Cookies.SessionName, logger),
		StreamHandler:   handlers.NewStreamHandler(b),
		AgentsHandler:   handlers.NewAgentsHandler(unary, logger),
		RulesHandler:    handlers.NewRulesHandler(unary, logger),
		ReportsHandler:  handlers.NewReportsHandler(unary, logger),
		SessionsHandler: sessionsHandler,
		HealthHandler:   handlers.NewHealthHandler(serviceName, version, db, broker),
		MetricsHandler:  promhttp.Handler(),
		AuthMiddleware:  auth.NewMiddleware(authClient, sessionCache, cfg.Cookies.SessionName, logger),
	}
	if cfg.Updates.Dir != "" {
		routerCfg.UpdatesHandler = handlers.NewUpdatesHandler(cfg.Updates.Dir)
	}
	mux := server.NewRouter(routerCfg)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORS.AllowedOrigins
	corsCfg.MaxAge = cfg.CORS.MaxAge

	csrf, err := bffmiddleware.CSRF(bffmiddleware.CSRFConfig{
		TrustedOrigins: trustedOrigins(cfg.CORS.AllowedOrigins),
		BypassPatterns: []string{"POST /api/auth/login"},
	}, logger)
	if err != nil {
		return err
	}

	handler := server.Chain(mux, server.ChainConfig{
		CORS:        corsCfg,
		Security:    bffmiddleware.SecurityConfig{HSTS: cfg.Cookies.Secure},
		CSRF:        csrf,
		RateLimiter: limiter,
		Logger:      logger,
	})

	srv := server.NewHTTPServer(cfg.Server, handler)
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}
	if err := server.Serve(ctx, srv, ln, cfg.Server.ShutdownTimeout, logger); err != nil {
		return err
	}
	logger.Info("gateway stopped")
	return nil
}

func openRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.MaxRetries = cfg.MaxRetries
	opts.PoolSize = cfg.PoolSize

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func newRateLimiter(cfg config.RateLimitConfig, client *redis.Client) ratelimit.RateLimiter {
	switch {
	case !cfg.Enabled:
		return &ratelimit.NoOpRateLimiter{}
	case cfg.Backend == "redis":
		return ratelimit.NewRedisRateLimiter(client, cfg.Burst, cfg.Window)
	default:
		return ratelimit.NewLocalRateLimiter(cfg.RequestsPerSecond, cfg.Burst)
	}
}

// openDatabase returns nil when no DSN is configured.
func openDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*sql.DB, error) {
	if cfg.Database.DSN == "" {
		logger.Warn("database.dsn not set, stream session audit disabled")
		return nil, nil
	}
	if migrateOnStart {
		if err := migrations.Up(cfg.Database.DSN); err != nil {
			return nil, err
		}
	}
	db, err := database.Open(ctx, cfg.Database.DSN, database.PoolConfig{
		MaxOpenConns:    cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:    cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.Pool.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.Pool.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("connected to postgres")
	return db, nil
}

// trustedOrigins keeps the CORS origins that name one exact origin.
func trustedOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "" || strings.Contains(o, "*") {
			continue
		}
		out = append(out, o)
	}
	return out
}
