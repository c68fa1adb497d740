package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/santega-authz/internal"
	"github.com/frahmantamala/santega-authz/internal/core/events"
	"github.com/frahmantamala/santega-authz/internal/directory"
	directoryPostgres "github.com/frahmantamala/santega-authz/internal/directory/postgres"
	directoryRest "github.com/frahmantamala/santega-authz/internal/directory/rest"
	"github.com/frahmantamala/santega-authz/internal/preference"
	preferencePostgres "github.com/frahmantamala/santega-authz/internal/preference/postgres"
	preferenceRedis "github.com/frahmantamala/santega-authz/internal/preference/redis"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var errNoDatabase = errors.New("database.source is required for this backend")

type Dependencies struct {
	Config      *internal.Config
	DB          *sqlx.DB
	Gorm        *gorm.DB
	Redis       *redis.Client
	Directory   directory.Client
	Preferences preference.Store
	Bus         *events.EventBus
	Logger      *slog.Logger
}

func initializeDependencies(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
		Bus:    events.NewEventBus(logger),
	}

	if cfg.Database.Source != "" {
		db, err := initDB(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		deps.DB = db

		gdb, err := initGorm(db)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to initialize gorm: %w", err)
		}
		deps.Gorm = gdb
	}

	if cfg.Preference.Backend == internal.PreferenceBackendRedis {
		rdb, err := initRedis(ctx, cfg.Redis)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		deps.Redis = rdb
	}

	dir, err := buildDirectory(cfg.Directory, deps.Gorm, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Directory = dir

	prefs, err := buildPreferences(cfg.Preference, deps.DB, deps.Redis)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Preferences = prefs

	return deps, nil
}

func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("redis close error", "error", err)
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			d.Logger.Error("database close error", "error", err)
		}
	}
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm shares the sqlx pool with gorm.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
}

func initRedis(ctx context.Context, cfg internal.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func buildDirectory(cfg internal.DirectoryConfig, gdb *gorm.DB, logger *slog.Logger) (directory.Client, error) {
	opts := []directory.Option{directory.WithTimeout(cfg.Timeout), directory.WithBackend(cfg.Backend)}

	switch cfg.Backend {
	case internal.DirectoryBackendREST:
		repo := directoryRest.NewClient(directoryRest.Config{
			BaseURL: cfg.RESTURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}, logger)
		return directory.NewService(repo, logger, opts...), nil
	case internal.DirectoryBackendPostgres:
		if gdb == nil {
			return nil, fmt.Errorf("directory backend %s: %w", cfg.Backend, errNoDatabase)
		}
		return directory.NewService(directoryPostgres.NewDirectoryRepository(gdb), logger, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported directory backend %q", cfg.Backend)
	}
}

func buildPreferences(cfg internal.PreferenceConfig, db *sqlx.DB, rdb *redis.Client) (preference.Store, error) {
	switch cfg.Backend {
	case internal.PreferenceBackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("preference backend %s: %w", cfg.Backend, errNoDatabase)
		}
		return preferencePostgres.NewPreferenceRepository(db), nil
	case internal.PreferenceBackendRedis:
		return preferenceRedis.NewPreferenceStore(rdb, cfg.TTL), nil
	case internal.PreferenceBackendMemory:
		return preference.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported preference backend %q", cfg.Backend)
	}
}
