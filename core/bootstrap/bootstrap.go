package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/scenebot/core/config"
	coredatabase "github.com/m3rciful/scenebot/core/database"
	"github.com/m3rciful/scenebot/core/dialogue"
	"github.com/m3rciful/scenebot/core/logger"
	"github.com/m3rciful/scenebot/core/metrics"
	"github.com/m3rciful/scenebot/core/storage"
	"github.com/m3rciful/scenebot/core/storage/memory"
	"github.com/m3rciful/scenebot/core/storage/postgres"
	redisstore "github.com/m3rciful/scenebot/core/storage/redis"
)

const waitForDatabase = 30 * time.Second

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config) error
	// SkipMigrations leaves the schema alone, e.g. for read-only CLI commands.
	SkipMigrations bool
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	Store dialogue.Store
	Guard *storage.Guard
	// DB is set for the postgres driver, Redis for the redis driver.
	DB    *sqlx.DB
	Redis *redisstore.Store
	// Checks feed the /healthz endpoint.
	Checks map[string]metrics.Pinger

	closers []func() error
}

// Close releases connections opened by Run.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Run initializes the logger and opens the configured session store.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res, err := OpenStore(ctx, opts)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "store", "store.ready",
		slog.String("status", "ok"),
		slog.String("store", opts.Config.Storage.Driver),
		slog.Bool("lock", res.Guard != nil),
	)
	return res, nil
}

// OpenStore builds the session store selected by cfg.Storage.Driver.
// The logger must already be initialised.
func OpenStore(ctx context.Context, opts Options) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	res := &Result{Checks: make(map[string]metrics.Pinger)}

	switch cfg.Storage.Driver {
	case coreconfig.StorageRedis:
		rs := redisstore.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redisstore.WithPrefix(cfg.Redis.Prefix),
			redisstore.WithTTL(cfg.Storage.TTL()),
		)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("bootstrap: redis %s: %w", cfg.Redis.Addr, err)
		}
		res.Store, res.Redis = rs, rs
		res.Checks["redis"] = metrics.PingerFunc(rs.Ping)
		res.closers = append(res.closers, rs.Close)
		if cfg.Storage.Lock {
			res.Guard = storage.NewGuard(redisstore.NewLocker(rs.Client(), rs.Prefix()), 0)
		}

	case coreconfig.StoragePostgres:
		db, err := openDatabase(ctx, opts)
		if err != nil {
			return nil, err
		}
		res.Store, res.DB = postgres.New(db), db
		res.Checks["postgres"] = metrics.PingerFunc(db.PingContext)
		res.closers = append(res.closers, db.Close)

	default:
		res.Store = memory.New()
	}

	if res.Guard == nil {
		res.Guard = storage.NewGuard(nil, 0)
	}
	return res, nil
}

func openDatabase(ctx context.Context, opts Options) (*sqlx.DB, error) {
	dbCfg := opts.Config.Database
	if opts.Connect == nil {
		if err := coredatabase.WaitForPostgres(ctx, coredatabase.DSN(dbCfg), waitForDatabase); err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	if opts.SkipMigrations {
		return db, nil
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(ctx, dbCfg); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}
	return db, nil
}
