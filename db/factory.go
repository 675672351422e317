package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/juju/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"school-server-go/config"
	"school-server-go/models"
)

// Conn is an open connection to the configured store backend. Stores for
// each entity are created on top of it with NewStore.
type Conn struct {
	Backend string
	Driver  string
	DB      *gorm.DB
	Redis   *redis.Client
	prefix  string
}

// Connect opens the backend selected by cfg.Store.Backend.
//
// Supported backends:
//
//	"gorm"   - sqlite or postgres through gorm, per cfg.Database.Driver
//	"redis"  - JSON records in Redis hashes
//	"memory" - in-memory (ephemeral, for testing)
func Connect(ctx context.Context, cfg *config.Config) (*Conn, error) {
	switch cfg.Store.Backend {
	case "gorm", "":
		gdb, err := OpenGorm(cfg.Database)
		if err != nil {
			return nil, err
		}
		return &Conn{Backend: "gorm", Driver: cfg.Database.Driver, DB: gdb}, nil
	case "redis":
		client, err := InitializeRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return &Conn{Backend: "redis", Redis: client, prefix: cfg.Redis.Prefix}, nil
	case "memory":
		return &Conn{Backend: "memory"}, nil
	default:
		return nil, errors.NotValidf("store backend %q (supported: gorm, redis, memory)", cfg.Store.Backend)
	}
}

// NewStore creates the store for one collection on c.
func NewStore[T any, PT models.Entity[T]](c *Conn, collection string, unique ...string) Store[T] {
	switch c.Backend {
	case "redis":
		return NewRedisStore[T, PT](c.Redis, c.prefix, collection, unique...)
	case "memory":
		return NewMemoryStore[T, PT](unique...)
	default:
		return NewGormStore[T](c.DB)
	}
}

// Close releases the underlying connection.
func (c *Conn) Close() error {
	switch {
	case c.DB != nil:
		sqlDB, err := c.DB.DB()
		if err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(sqlDB.Close())
	case c.Redis != nil:
		return errors.Trace(c.Redis.Close())
	}
	return nil
}

// OpenGorm opens the relational database described by cfg.
func OpenGorm(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		if err := ensureDir(cfg.DSN); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.PostgresDSN())
	default:
		return nil, errors.NotValidf("database driver %q", cfg.Driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(gormWriter{}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open %s database", cfg.Driver)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	logger.Infof("opened %s database", cfg.Driver)
	return gdb, nil
}

// ensureDir creates the parent directory of a sqlite file path.
func ensureDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return errors.Annotatef(err, "creating directory for %s", dsn)
	}
	return nil
}

// InitializeRedisClient creates and tests a Redis client connection
func InitializeRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Ping Redis to check connection
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Annotatef(err, "could not connect to Redis at %s", cfg.Addr)
	}

	logger.Infof("connected to Redis %s db %d", cfg.Addr, cfg.DB)
	return rdb, nil
}

// gormWriter routes gorm's logger through loggo.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	logger.Warningf("%s", strings.TrimSpace(fmt.Sprintf(format, args...)))
}
