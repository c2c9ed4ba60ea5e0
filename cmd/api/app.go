package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/kuchikomi/internal/api"
	"github.com/onnwee/kuchikomi/internal/auth"
	"github.com/onnwee/kuchikomi/internal/breaker"
	"github.com/onnwee/kuchikomi/internal/config"
	"github.com/onnwee/kuchikomi/internal/db"
	"github.com/onnwee/kuchikomi/internal/discovery"
	"github.com/onnwee/kuchikomi/internal/feed"
	"github.com/onnwee/kuchikomi/internal/geo"
	"github.com/onnwee/kuchikomi/internal/health"
	"github.com/onnwee/kuchikomi/internal/keyword"
	"github.com/onnwee/kuchikomi/internal/middleware"
	"github.com/onnwee/kuchikomi/internal/post"
	"github.com/onnwee/kuchikomi/internal/profile"
	"github.com/onnwee/kuchikomi/internal/ranking"
	"github.com/onnwee/kuchikomi/internal/social"
	"github.com/onnwee/kuchikomi/internal/tracing"
)

// rateLimitCleanupInterval is how often expired in-memory buckets are dropped.
const rateLimitCleanupInterval = 5 * time.Minute

// stores are the read models behind the discovery service.
type stores struct {
	content   post.ContentStore
	graph     social.Graph
	directory profile.Directory
	geoIndex  geo.Index
}

// app owns the wired handler and the resources it must release.
type app struct {
	handler  http.Handler
	registry *prometheus.Registry
	closers  []func(context.Context) error
}

// Handler returns the fully wrapped HTTP handler.
func (a *app) Handler() http.Handler {
	return a.handler
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			slog.Warn("failed to release resource", "error", err)
		}
	}
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// newApp wires configuration into stores, the discovery service and the
// middleware chain. Postgres and Redis are used when configured; otherwise
// in-memory stores stand in, which is only allowed outside production.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (a *app, err error) {
	a = &app{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	provider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  tracing.DefaultServiceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.onClose(provider.Shutdown)

	st, dbChecker, err := a.openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	keywords, err := loadKeywords(cfg.AliasDictionaryPath)
	if err != nil {
		return nil, err
	}

	rankCfg := ranking.Config{FollowBonus: cfg.FollowBonus}
	if err := rankCfg.Validate(); err != nil {
		return nil, err
	}
	rankCfg.LogOverrides()

	discoveryMetrics := discovery.NewMetrics()
	httpMetrics := middleware.NewMetrics()
	breakerMetrics := breaker.NewMetrics()
	for _, register := range []func(prometheus.Registerer) error{
		discoveryMetrics.Register,
		httpMetrics.Register,
		breakerMetrics.Register,
	} {
		if err := register(a.registry); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	st = guardStores(st, cfg, logger, breakerMetrics)

	svc := discovery.NewService(discovery.Config{
		DefaultLimit:        cfg.DefaultPageLimit,
		MaxLimit:            cfg.MaxPageLimit,
		DefaultRadiusMeters: cfg.DefaultRadiusMeters,
		MaxRadiusMeters:     cfg.MaxRadiusMeters,
		InterleaveWindow:    cfg.InterleaveWindow,
	}, discovery.Dependencies{
		Content:  st.content,
		Graph:    st.graph,
		Geo:      geo.NewResolver(st.geoIndex, cfg.WalkMetersPerMinute),
		Keywords: keywords,
		Ranker:   ranking.New(rankCfg),
		Injector: feed.NewInjector(st.directory, cfg.SuggestionLimit, cfg.SuggestionPosition),
		Metrics:  discoveryMetrics,
	})
	logger.Info("discovery service configured", "config", svc.Config().String())

	limiter, redisChecker, err := a.rateLimitStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTSecretPrevious, auth.DefaultLeeway)

	discoveryMux := http.NewServeMux()
	api.NewDiscoveryHandlers(svc).Register(discoveryMux, middleware.RequireViewer)
	discoveryMux.HandleFunc("/", api.NotFound)

	limited := middleware.RateLimiter(limiter, middleware.PerMinute(cfg.RateLimitPerMinute), middleware.ViewerKeyFunc(), httpMetrics)
	mux := http.NewServeMux()
	api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:    dbChecker,
		RedisChecker: redisChecker,
	}).Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	mux.Handle("/", middleware.OptionalAuth(jwtService)(limited(discoveryMux)))

	var handler http.Handler = mux
	handler = middleware.Profiling(middleware.ProfilingConfig{
		Enabled:     cfg.ProfilingEnabled,
		Environment: cfg.Env,
	})(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins, MaxAge: 600})(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing(tracing.DefaultServiceName)(handler)
	handler = middleware.RequestID(handler)
	a.handler = handler
	return a, nil
}

// openStores connects to Postgres when DATABASE_URL is set. The returned
// checker is nil for in-memory stores.
func (a *app) openStores(ctx context.Context, cfg *config.Config) (stores, health.Checker, error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, using in-memory stores")
		return stores{
			content:   post.NewInMemoryContentStore(),
			graph:     social.NewInMemoryGraph(),
			directory: profile.NewInMemoryDirectory(),
			geoIndex:  geo.NewInMemoryIndex(geo.DefaultTopK),
		}, nil, nil
	}

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return stores{}, nil, err
	}
	a.onClose(func(context.Context) error { return conn.Close() })
	if err := db.Migrate(ctx, conn); err != nil {
		return stores{}, nil, err
	}
	return postgresStores(conn), health.NewDBChecker(conn), nil
}

func postgresStores(conn *sql.DB) stores {
	return stores{
		content:   post.NewPostgresContentStore(conn),
		graph:     social.NewPostgresGraph(conn),
		directory: profile.NewPostgresDirectory(conn),
		geoIndex:  geo.NewPostgresIndex(conn, geo.DefaultTopK),
	}
}

// guardStores puts a circuit breaker in front of each upstream store.
// A zero threshold leaves them unguarded.
func guardStores(st stores, cfg *config.Config, logger *slog.Logger, metrics *breaker.Metrics) stores {
	if cfg.BreakerFailureThreshold == 0 {
		return st
	}
	settings := breaker.Settings{
		FailureThreshold: uint32(cfg.BreakerFailureThreshold),
		OpenTimeout:      time.Duration(cfg.BreakerOpenSeconds) * time.Second,
	}
	st.content = breaker.NewContentStore(st.content,
		breaker.New(discovery.SourceContentStore, settings, logger, metrics))
	st.graph = breaker.NewGraph(st.graph,
		breaker.New(discovery.SourceSocialGraph, settings, logger, metrics))
	st.geoIndex = breaker.NewIndex(st.geoIndex,
		breaker.New(discovery.SourceGeoIndex, settings, logger, metrics))
	st.directory = breaker.NewDirectory(st.directory,
		breaker.New(discovery.SourceProfileDirectory, settings, logger, metrics))
	return st
}

// rateLimitStore returns a Redis backed store when REDIS_URL is set so that
// limits are shared across instances, and an in-memory store otherwise.
func (a *app) rateLimitStore(ctx context.Context, cfg *config.Config) (middleware.RateLimitStore, health.Checker, error) {
	if cfg.RedisURL == "" {
		store := middleware.NewInMemoryRateLimitStore()
		cleanupCtx, cancel := context.WithCancel(context.Background())
		go store.RunCleanup(cleanupCtx, rateLimitCleanupInterval)
		a.onClose(func(context.Context) error {
			cancel()
			return nil
		})
		return store, nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	a.onClose(func(context.Context) error { return client.Close() })

	checker := health.NewRedisChecker(client)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := checker.HealthCheck(pingCtx); err != nil {
		// Rate limiting fails open, so an unreachable Redis does not block startup.
		slog.Warn("redis unreachable at startup", "error", err)
	}
	return middleware.NewRedisRateLimitStore(client), checker, nil
}

func loadKeywords(path string) (*keyword.Dictionary, error) {
	if path == "" {
		return keyword.NewDictionary(keyword.DefaultEntries()), nil
	}
	dict, err := keyword.LoadDictionary(path)
	if err != nil {
		return nil, fmt.Errorf("load alias dictionary: %w", err)
	}
	return dict, nil
}
