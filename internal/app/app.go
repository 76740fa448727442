// Package app assembles the API server from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/portfolio-egg/egg/internal/cli/config"
	"github.com/portfolio-egg/egg/internal/jobs"
	"github.com/portfolio-egg/egg/internal/orm/migrate"
	"github.com/portfolio-egg/egg/internal/storage"
	"github.com/portfolio-egg/egg/internal/store"
	"github.com/portfolio-egg/egg/internal/web/auth"
	"github.com/portfolio-egg/egg/internal/web/cache"
	"github.com/portfolio-egg/egg/internal/web/handlers"
	"github.com/portfolio-egg/egg/internal/web/metrics"
	"github.com/portfolio-egg/egg/internal/web/middleware"
	"github.com/portfolio-egg/egg/internal/web/oauth"
	"github.com/portfolio-egg/egg/internal/web/profiling"
	"github.com/portfolio-egg/egg/internal/web/ratelimit"
	"github.com/portfolio-egg/egg/internal/web/router"
	"github.com/portfolio-egg/egg/internal/web/server"
	"github.com/portfolio-egg/egg/internal/web/websocket"
)

// jobTimeout bounds a single background job run
const jobTimeout = 5 * time.Minute

// App is a fully wired API server
type App struct {
	config    *config.Config
	logger    *zap.Logger
	db        *sqlx.DB
	store     *store.Store
	redis     *redis.Client
	metrics   *metrics.Metrics
	hub       *websocket.Hub
	scheduler *jobs.Scheduler
	router    *router.Router
	server    *server.Server
	// pprof is nil unless server.pprof_addr is set
	pprof *server.Server

	// releases runs in reverse order on shutdown
	releases  []release
	closeOnce sync.Once
	closeErr  error
}

type release struct {
	name string
	fn   server.Hook
}

// New connects to the database and Redis and builds the server. The
// caller must either Run or Close the returned App.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{config: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a.db, err = store.Open(ctx, store.Config{
		Driver:          cfg.Database.Driver,
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	a.onClose("database", func(context.Context) error { return a.db.Close() })

	a.store, err = store.New(a.db)
	if err != nil {
		return nil, err
	}

	shared, apiLimiter, authLimiter, err := a.buildCaches(ctx)
	if err != nil {
		return nil, err
	}

	files, err := storage.NewDiskStore(cfg.Storage.Dir)
	if err != nil {
		return nil, err
	}
	attachments := storage.NewAttachments(files, a.store.Blobs, storage.NewSigner(cfg.Auth.JWTSecret), storage.Config{
		PublicURL:     cfg.Server.PublicURL,
		Bucket:        cfg.Storage.BucketName,
		BucketBaseURL: cfg.Storage.PublicBaseURL,
	}, logger.Named("storage"))

	a.metrics = metrics.New()
	a.hub = websocket.NewHub(logger.Named("websocket"), websocket.WithConnectionObserver(a.metrics.SetStreamClients))
	a.onClose("websocket hub", a.hub.Shutdown)

	h := handlers.New(handlers.Deps{
		Store:       a.store,
		Auth:        auth.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, shared),
		Attachments: attachments,
		GitHub: oauth.NewGitHub(oauth.Config{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
			RedirectURL:  cfg.GitHub.RedirectURL,
		}, shared),
		Hub:         a.hub,
		Upgrader:    websocket.NewUpgrader(websocket.DefaultConfig(cfg.Frontend.Origin), a.hub, logger.Named("websocket")),
		Metrics:     a.metrics,
		Logger:      logger.Named("api"),
		AuthLimiter: authLimiter,
		FrontendURL: cfg.Frontend.Origin,
		UploadLimit: cfg.Storage.MaxUploadBytes,
		Location:    loc,
	})

	proxies, err := middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("server.trusted_proxies: %w", err)
	}
	a.router = router.NewRouter()
	a.router.Use(
		middleware.RequestID(),
		middleware.ClientIP(proxies),
		middleware.Recovery(logger),
		middleware.Logging(logger.Named("http")),
		a.metrics.Middleware(),
		middleware.Unless(middleware.IsWebSocketUpgrade, middleware.Compression()),
		middleware.Unless(middleware.IsWebSocketUpgrade, middleware.Deadline(cfg.Server.RequestTimeout)),
		middleware.CORSWithConfig(middleware.FrontendCORSConfig(cfg.Frontend.Origin)),
	)
	if apiLimiter != nil {
		a.router.Use(middleware.RateLimit(apiLimiter, logger))
	}
	router.SetupDefaultErrorHandlers(a.router)
	h.Register(a.router)

	a.scheduler = jobs.NewScheduler(jobs.Config{Location: loc, Timeout: jobTimeout}, logger.Named("jobs"))
	if cfg.Jobs.BlobGCSchedule != "" {
		collector := &jobs.BlobCollector{
			Purger:    attachments,
			Grace:     cfg.Jobs.BlobGCGrace,
			Now:       a.store.Now,
			Logger:    logger.Named("blob_gc"),
			OnCollect: a.metrics.RecordBlobsCollected,
		}
		if err := a.scheduler.Add(jobs.BlobGCJobName, cfg.Jobs.BlobGCSchedule, collector); err != nil {
			return nil, err
		}
	}
	a.onClose("scheduler", a.scheduler.Stop)

	a.server, err = server.New(server.Config{
		Address:           cfg.Address(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: server.DefaultConfig().ReadHeaderTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		MaxHeaderBytes:    server.DefaultConfig().MaxHeaderBytes,
	}, a.router, logger.Named("server"))
	if err != nil {
		return nil, err
	}
	for _, r := range a.releases {
		a.server.OnShutdown(r.name, r.fn)
	}

	if cfg.Server.PprofAddr != "" {
		a.pprof, err = server.New(server.Config{
			Address:         cfg.Server.PprofAddr,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}, middleware.NewChain(
			middleware.RequestID(),
			middleware.Recovery(logger),
		).Then(profiling.Handler(profiling.Config{BlockRate: 1, MutexFraction: 1})), logger.Named("pprof"))
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

// buildCaches picks Redis when it is configured and process memory
// otherwise. Limiters are nil when their budget is zero.
func (a *App) buildCaches(ctx context.Context) (cache.Cache, ratelimit.RateLimiter, ratelimit.RateLimiter, error) {
	cfg := a.config
	api := ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute, "ratelimit:api:")
	credentials := ratelimit.PerMinute(cfg.RateLimit.AuthRequestsPerMinute, "ratelimit:auth:")

	if cfg.Redis.URL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, nil, err
		}
		a.redis = client
		a.onClose("redis", func(context.Context) error { return client.Close() })
		a.logger.Info("using redis for tokens and rate limits")

		newLimiter := func(c ratelimit.Config) (ratelimit.RateLimiter, error) {
			if c.Limit <= 0 {
				return nil, nil
			}
			return ratelimit.NewRedisRateLimiter(client, c)
		}
		apiLimiter, err := newLimiter(api)
		if err != nil {
			return nil, nil, nil, err
		}
		authLimiter, err := newLimiter(credentials)
		if err != nil {
			return nil, nil, nil, err
		}
		// the client is shared, so the cache itself is not closed
		return cache.NewRedisCache(client, cache.DefaultConfig()), apiLimiter, authLimiter, nil
	}

	shared := cache.NewMemoryCache(cache.DefaultConfig())
	a.onClose("memory cache", func(context.Context) error { return shared.Close() })

	newLimiter := func(c ratelimit.Config) (ratelimit.RateLimiter, error) {
		if c.Limit <= 0 {
			return nil, nil
		}
		limiter, err := ratelimit.NewMemoryRateLimiter(c)
		if err != nil {
			return nil, err
		}
		a.onClose(c.Prefix+"limiter", func(context.Context) error { return limiter.Close() })
		return limiter, nil
	}
	apiLimiter, err := newLimiter(api)
	if err != nil {
		return nil, nil, nil, err
	}
	authLimiter, err := newLimiter(credentials)
	if err != nil {
		return nil, nil, nil, err
	}
	return shared, apiLimiter, authLimiter, nil
}

func (a *App) onClose(name string, fn server.Hook) {
	a.releases = append(a.releases, release{name: name, fn: fn})
}

// Handler is the root HTTP handler
func (a *App) Handler() http.Handler {
	return a.router
}

// Router exposes the route table
func (a *App) Router() *router.Router {
	return a.router
}

// Store is the database access layer
func (a *App) Store() *store.Store {
	return a.store
}

// Scheduler runs the background jobs
func (a *App) Scheduler() *jobs.Scheduler {
	return a.scheduler
}

// Server is the HTTP server
func (a *App) Server() *server.Server {
	return a.server
}

// Migrate applies pending schema migrations
func (a *App) Migrate(ctx context.Context) (int, error) {
	migs, err := store.Migrations(a.store.Dialect())
	if err != nil {
		return 0, err
	}
	return migrate.NewRunner(a.db, a.logger.Named("migrate")).MigrateUp(ctx, migs)
}

// Run serves requests and runs the background jobs until ctx is
// cancelled, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.hub.Run(gctx)
	})
	a.scheduler.Start()
	if a.pprof != nil {
		g.Go(func() error {
			return a.pprof.Run(gctx)
		})
	}
	g.Go(func() error {
		err := a.server.Run(gctx)
		if gctx.Err() != nil {
			// a graceful shutdown has run the release hooks
			a.closeOnce.Do(func() { a.closeErr = err })
		}
		return err
	})

	err := g.Wait()
	if closeErr := a.Close(context.Background()); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Close releases everything New acquired. It is a no-op after Run.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		var errs []error
		for i := len(a.releases) - 1; i >= 0; i-- {
			r := a.releases[i]
			if err := r.fn(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", r.name, err))
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

// Routes lists the API routes without connecting to anything
func Routes() []router.Route {
	r := router.NewRouter()
	handlers.New(handlers.Deps{Metrics: metrics.New()}).Register(r)
	return r.Routes()
}
