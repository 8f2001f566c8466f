package dependencies

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"HomePulse/internal/alerts"
	"HomePulse/internal/analytics"
	"HomePulse/internal/cache"
	"HomePulse/internal/checker"
	"HomePulse/internal/config"
	"HomePulse/internal/metrics"
	"HomePulse/internal/models"
	"HomePulse/internal/monitor"
	"HomePulse/internal/realtime"
	"HomePulse/internal/storage"
)

// Container wires the whole monitoring core together. Postgres and Redis are
// optional at runtime: when either is down the components degrade instead of
// refusing to start.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	DB    *pgxpool.Pool
	Redis *redis.Client

	Store     storage.MetricStore
	Cache     cache.Cache
	Collector *metrics.Collector
	Alerts    *alerts.Manager
	Checker   *checker.Registry
	Engine    *analytics.Engine
	Monitor   *monitor.Monitor
	Hub       *realtime.Hub
}

func NewContainer(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: log,
	}

	c.initDatabase(ctx)
	c.initRedis()
	c.initComponents()
	c.registerTargets()

	log.Info("dependency container initialized",
		"store_available", c.Store != nil,
		"cache_backend", cacheBackend(c.Redis),
		"targets", len(cfg.Monitoring.Targets),
	)

	return c, nil
}

// initDatabase connects to Postgres. Failure degrades to memory-only metric
// history instead of aborting startup.
func (c *Container) initDatabase(ctx context.Context) {
	if !c.Config.Database.Enabled {
		c.Logger.Info("database disabled, metric history is memory-only")
		return
	}

	pool, err := storage.NewPostgres(ctx, &c.Config.Database, c.Logger)
	if err != nil {
		c.Logger.Warn("postgres unavailable, metric history is memory-only", "error", err)
		return
	}

	c.DB = pool
	c.Store = storage.NewMetricStore(pool)
}

// initRedis connects to Redis. Failure degrades the cache to pass-through.
func (c *Container) initRedis() {
	if !c.Config.Redis.Enabled {
		c.Logger.Info("redis disabled, cache is pass-through")
		c.Cache = cache.NewNoop()
		return
	}

	client := redis.NewClient(c.Config.Redis.GetRedisOptions())

	redisCache, err := cache.NewRedis(client, c.Config.Monitoring.CacheFreshness*4, c.Logger)
	if err != nil {
		c.Logger.Warn("redis unavailable, cache is pass-through", "error", err)
		_ = client.Close()
		c.Cache = cache.NewNoop()
		return
	}

	c.Redis = client
	c.Cache = redisCache
}

func (c *Container) initComponents() {
	c.Collector = metrics.NewCollector(metrics.CollectorConfig{
		MaxSamplesPerService: c.Config.Monitoring.MaxSamplesPerService,
	}, c.Store, c.Logger.With("component", "metrics"))

	c.Alerts = alerts.NewManager(alerts.ManagerConfig{
		HistorySize: c.Config.Alerts.HistorySize,
	}, c.Store, c.Logger.With("component", "alerts"))

	c.Alerts.RegisterChannel(alerts.NewLogChannel(c.Logger.With("component", "alerts")))
	if c.Config.Alerts.WebhookURL != "" {
		c.Alerts.RegisterChannel(alerts.NewWebhookChannel(c.Config.Alerts.WebhookURL))
	}
	if c.Redis != nil && c.Config.Alerts.RedisChannel != "" {
		c.Alerts.RegisterChannel(alerts.NewRedisChannel(c.Redis, c.Config.Alerts.RedisChannel))
	}

	c.Checker = checker.NewRegistry(checker.RegistryConfig{
		MaxConcurrentChecks: c.Config.Monitoring.MaxConcurrentChecks,
	}, c.Logger.With("component", "checker"))

	c.Engine = analytics.NewEngine(analytics.EngineConfig{}, c.Logger.With("component", "analytics"))

	c.Monitor = monitor.New(
		c.Checker,
		c.Collector,
		c.Cache,
		c.Alerts,
		c.Store,
		c.Engine,
		monitor.Config{
			Interval:             c.Config.Monitoring.Interval,
			HighLatencyThreshold: c.Config.Monitoring.HighLatencyThreshold,
			CacheFreshness:       c.Config.Monitoring.CacheFreshness,
		},
		c.Logger.With("component", "monitor"),
	)

	c.Hub = realtime.NewHub(c.Monitor, c.Alerts, realtime.Config{
		RequestsPerMinute:      c.Config.Realtime.RequestsPerMinute,
		CheckRequestsPerMinute: c.Config.Realtime.CheckRequestsPerMinute,
	}, c.Logger.With("component", "realtime"))

	c.Monitor.SetBroadcaster(c.Hub)
	c.Alerts.RegisterChannel(c.Hub)
}

func (c *Container) registerTargets() {
	for _, t := range c.Config.Monitoring.Targets {
		target := models.ServiceTarget{
			ID:        t.ID,
			Name:      t.Name,
			URL:       t.URL,
			Protocol:  models.Protocol(t.Protocol),
			TimeoutMs: t.TimeoutMs,
		}
		if target.Name == "" {
			target.Name = target.ID
		}

		if err := c.Monitor.AddServer(target); err != nil {
			c.Logger.Warn("skipping invalid configured target",
				"error", err,
				"target_id", t.ID,
			)
		}
	}
}

// Close releases external connections.
func (c *Container) Close() {
	if c.DB != nil {
		c.DB.Close()
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("error closing redis client", "error", err)
		}
	}
}

func cacheBackend(client *redis.Client) string {
	if client == nil {
		return "noop"
	}
	return "redis"
}
