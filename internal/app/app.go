package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/mapmarks/internal/backend"
	"github.com/MrSnakeDoc/mapmarks/internal/cache"
	"github.com/MrSnakeDoc/mapmarks/internal/catalog"
	"github.com/MrSnakeDoc/mapmarks/internal/config"
	"github.com/MrSnakeDoc/mapmarks/internal/geocode"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mapmarks/internal/index"
	"github.com/MrSnakeDoc/mapmarks/internal/logger"
	"github.com/MrSnakeDoc/mapmarks/internal/mapflow"
	"github.com/MrSnakeDoc/mapmarks/internal/media"
	"github.com/MrSnakeDoc/mapmarks/internal/payload"
	"github.com/MrSnakeDoc/mapmarks/internal/presentation"
	"github.com/MrSnakeDoc/mapmarks/internal/redis"
	"github.com/MrSnakeDoc/mapmarks/internal/scheduler"
	"github.com/MrSnakeDoc/mapmarks/internal/session"
	"github.com/MrSnakeDoc/mapmarks/internal/version"
	"github.com/MrSnakeDoc/mapmarks/internal/workspace"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	valkey      *cache.Valkey
	refresher   *scheduler.CatalogRefresher
	sweeper     *scheduler.WorkspaceSweeper
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Redis backs the session store and, optionally, the response cache.
	// Connect early so a misconfigured address fails fast.
	var redisClient *goredis.Client
	if cfg.RedisAddr != "" {
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RedisConnectTimeout+5*time.Second)
		client, err := redis.Connect(ctx, redis.OptionsFromConfig(cfg), loggerClient)
		cancel()
		if err != nil {
			loggerClient.Errorf("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		redisClient = client
		loggerClient.Info("Redis initialized successfully")
	}

	respCache, valkeyCache := newCache(cfg, redisClient, loggerClient)

	api := backend.New(cfg.BackendURL, cfg.BackendTimeout, nil, loggerClient.With(logger.String("component", "backend")))
	cat := catalog.New(api, respCache, index.NewMemoryIndex(), loggerClient.With(logger.String("component", "catalog")))

	var (
		store    session.Store
		memStore *session.MemoryStore
	)
	if redisClient != nil {
		store = session.NewRedisStore(redisClient)
	} else {
		memStore = session.NewMemoryStore(time.Now)
		store = memStore
		loggerClient.Warn("no Redis configured, sessions are kept in memory and lost on restart")
	}
	sessions := session.NewManager(api, store, cfg.SessionTTL, loggerClient)

	geo := geocode.New(geocode.Options{
		BaseURL:   cfg.NominatimURL,
		UserAgent: cfg.NominatimAgent,
		RPS:       cfg.NominatimRPS,
		Logger:    loggerClient.With(logger.String("component", "geocode")),
	})

	uploader := media.NewUploader(media.UploaderOptions{
		BaseURL: cfg.CloudinaryURL,
		Cloud:   cfg.CloudinaryCloud,
		Preset:  cfg.CloudinaryPreset,
		Limits: media.Limits{
			MaxImageBytes: cfg.MaxImageBytes,
			MaxVideoBytes: cfg.MaxVideoBytes,
			MaxImages:     cfg.MaxImages,
		},
		Logger: loggerClient.With(logger.String("component", "media")),
	})
	if cfg.CloudinaryCloud == "" {
		loggerClient.Warn("MAPMARKS_CLOUDINARY_CLOUD not set, /api/uploads is disabled")
	}

	style, err := presentation.LoadStyle(cfg.PresentationFile)
	if err != nil {
		loggerClient.Warn("failed to load presentation file, using defaults",
			logger.String("file", cfg.PresentationFile), logger.Error(err))
		style = presentation.NewStyle(presentation.File{})
	}

	workspaces := workspace.NewManager(workspace.Options{
		IdleTTL: cfg.WorkspaceIdle,
		Strict:  cfg.StrictWizard,
		Map:     mapflow.Options{Geocoder: geo, Debounce: cfg.SearchDebounce},
		Logger:  loggerClient,
	})

	// Create manual reload trigger channel
	reloadTrigger := make(chan struct{}, 1)

	refresher := scheduler.NewCatalogRefresher(cat, loggerClient, cfg.RefreshInterval, reloadTrigger)

	targets := map[string]scheduler.Sweepable{"workspaces": workspaces}
	if memStore != nil {
		targets["sessions"] = scheduler.SweepFunc(memStore.Purge)
	}
	sweeper := scheduler.NewWorkspaceSweeper(loggerClient, cfg.SweepSchedule, targets)

	d := deps.Deps{
		Logger:        loggerClient,
		StartTime:     time.Now(),
		Version:       version.Version,
		Commit:        version.Commit,
		BuildDate:     version.BuildDate,
		GoVersion:     version.GoVersion,
		TimeNow:       time.Now,
		AllowedHosts:  cfg.AllowedHosts,
		AllowedCIDRS:  cfg.AllowedCIDRS,
		AllowOrigins:  cfg.AllowOrigins,
		TrustProxy:    cfg.TrustProxy,
		RateBurst:     cfg.RateBurst,
		RatePerMin:    cfg.RatePerMin,
		RedisClient:   redisClient,
		Cache:         respCache,
		Backend:       api,
		Catalog:       cat,
		Sessions:      sessions,
		Workspaces:    workspaces,
		Payloads:      payload.NewBuilder(time.Now),
		Geocoder:      geo,
		Uploader:      uploader,
		Style:         style,
		ImageBase:     cfg.ImageBase,
		ReloadTrigger: reloadTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		valkey:      valkeyCache,
		refresher:   refresher,
		sweeper:     sweeper,
	}
}

// newCache picks the response cache backend. The Valkey cache is also
// returned on its own so it can be closed on shutdown.
func newCache(cfg *config.Config, redisClient *goredis.Client, log logger.Logger) (cache.Cache, *cache.Valkey) {
	opts := cache.Options{TTL: cfg.CacheTTL, Logger: log.With(logger.String("component", "cache"))}

	switch cfg.CacheBackend {
	case config.CacheRedis:
		return cache.WithMetrics(cache.NewRedis(redisClient, opts)), nil
	case config.CacheValkey:
		v, err := cache.DialValkey(cfg.ValkeyAddr, opts)
		if err != nil {
			log.Errorf("Failed to connect to Valkey: %v", err)
			os.Exit(1)
		}
		log.Info("Valkey cache initialized", logger.String("addr", cfg.ValkeyAddr))
		return cache.WithMetrics(v), v
	default:
		return cache.WithMetrics(cache.NewMemory(opts)), nil
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting mapmarks v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("mapmarks %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Warm the catalog and start periodic refresh
	if err := a.refresher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start catalog refresher: %w", err)
	}
	a.logger.Info("catalog refresher started",
		logger.Duration("interval", a.cfg.RefreshInterval))

	if err := a.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start workspace sweeper: %w", err)
	}
	a.logger.Info("workspace sweeper started",
		logger.String("schedule", a.cfg.SweepSchedule))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.refresher.Stop()
	a.sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.valkey != nil {
		a.valkey.Close()
		a.logger.Info("✅ Valkey closed cleanly")
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ mapmarks stopped cleanly")
	_ = a.logger.Sync()
	return nil
}
