package container

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"hll/contentbot/internal/assets"
	"hll/contentbot/internal/catalog"
	"hll/contentbot/internal/config"
	"hll/contentbot/internal/discord"
	"hll/contentbot/internal/entrypoint"
	"hll/contentbot/internal/queue"
	"hll/contentbot/internal/render"
	"hll/contentbot/internal/repository"
	"hll/contentbot/internal/service"
	"hll/contentbot/internal/session"
	"hll/contentbot/internal/state"

	"hll/contentbot/internal/domain"
)

// Container holds all initialized components
type Container struct {
	Config      *config.Config
	Store       *catalog.Store
	Assets      *assets.Resolver
	Registry    *session.Registry
	Repository  repository.EntryPointRepository
	Queue       queue.Queue
	State       state.StateManager
	Coordinator *entrypoint.Coordinator
	Service     *service.Service
	Bot         *discord.Bot

	db    *pgxpool.Pool
	redis *redis.Client
}

// New creates a new container with all dependencies initialized
func New(cfg *config.Config) (*Container, error) {
	container := &Container{
		Config: cfg,
	}

	// Load the static catalogs; a broken catalog is fatal
	raw, err := readCatalogFiles(cfg.Catalog.DataDir)
	if err != nil {
		return nil, err
	}
	store, err := catalog.Load(raw, nil)
	if err != nil {
		return nil, err
	}
	container.Store = store

	resolver, err := assets.NewResolver(
		cfg.Assets.Dir,
		cfg.Assets.UseExternal,
		cfg.Assets.ExternalBaseURL,
		time.Duration(cfg.Assets.Timeout)*time.Second,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize asset resolver: %w", err)
	}
	container.Assets = resolver

	if missing := store.AuditAssets(resolver.Has); len(missing) > 0 {
		log.Warnf("⚠️ %d catalog entries reference missing assets", len(missing))
		for _, m := range missing {
			log.Debugf("   missing asset: %s", m)
		}
	}

	// Durable entry-point records
	db, err := pgxpool.New(context.Background(),
		fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Name,
		))
	if err != nil {
		return nil, err
	}
	container.db = db
	container.Repository = repository.NewEntryPointRepository(db)

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})

	// Test connection
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info("✅ Connected to Redis successfully")
	container.redis = rdb

	redisQueue, err := queue.NewRedisQueue(rdb, cfg.Redis)
	if err != nil {
		return nil, err
	}
	container.Queue = redisQueue
	container.State = state.NewRedisStateManager(rdb)

	container.Registry = session.NewRegistry(store, clock.New())
	renderer := render.NewRenderer(store, resolver.URL)

	bot, err := discord.New(cfg.Discord, resolver)
	if err != nil {
		return nil, err
	}
	container.Bot = bot
	messenger := discord.NewMessenger(bot.Session())

	container.Service = service.NewService(
		container.Registry,
		store,
		renderer,
		container.Repository,
		container.State,
		redisQueue,
		messenger,
		cfg.Session.MaxEditPerSecond,
		cfg.Redis.ConsumerGroup,
		cfg.Redis.MinIdleTime,
		cfg.Session.IdleTimeout,
		cfg.Session.SweepInterval,
	)
	container.Coordinator = entrypoint.NewCoordinator(
		container.Repository,
		container.State,
		container.Registry,
		store,
		renderer,
		redisQueue,
		messenger,
	)
	bot.SetService(container.Service)
	bot.SetCoordinator(container.Coordinator)

	return container, nil
}

// Run connects to the gateway, re-binds the persistent browsers, and drives
// the sweep and refresh loops until ctx ends.
func (c *Container) Run(ctx context.Context) error {
	if c.Config.Assets.UseExternal && c.Config.Assets.CheckOnStart {
		if unreachable := c.Assets.CheckExternal(ctx, c.Store.ImageRefs()); len(unreachable) > 0 {
			log.Warnf("⚠️ %d external assets unreachable", len(unreachable))
		}
	}

	if err := c.Bot.Open(); err != nil {
		return err
	}

	if err := c.Coordinator.Reconcile(ctx); err != nil {
		log.Errorf("❌ Entry-point reconciliation failed: %v", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.Service.RunSweeper(ctx)
	})

	g.Go(func() error {
		return c.Service.RunWorkers(ctx, c.Config.Session.MaxWorkers)
	})

	return g.Wait()
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	if err := c.Bot.Close(); err != nil {
		log.Errorf("❌ Failed to close gateway session: %v", err)
	}
	c.db.Close()
	if err := c.redis.Close(); err != nil {
		log.Errorf("❌ Failed to close Redis client: %v", err)
	}

	log.Info("Container shut down successfully")
	return nil
}

// readCatalogFiles loads <data_dir>/<kind>.json for every known catalog.
// Missing files are skipped with a warning; the loader decides whether
// anything usable remains.
func readCatalogFiles(dataDir string) (map[domain.CatalogKind][]byte, error) {
	raw := make(map[domain.CatalogKind][]byte)
	for _, kind := range domain.CatalogKinds {
		path := filepath.Join(dataDir, kind.String()+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				log.Warnf("⚠️ Catalog file not found: %s", path)
				continue
			}
			return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
		}
		raw[kind] = data
		log.Infof("✅ Loaded %s", filepath.Base(path))
	}
	return raw, nil
}
