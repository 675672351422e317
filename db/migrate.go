package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/juju/errors"
	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrations embed.FS

// gooseDialects maps database drivers onto goose dialect names.
var gooseDialects = map[string]string{
	"sqlite":   "sqlite3",
	"postgres": "postgres",
}

// Migrate runs a goose command ("up", "down" or "status") against sqlDB
// using the migrations embedded for driver.
func Migrate(ctx context.Context, sqlDB *sql.DB, driver, command string) error {
	dialect, ok := gooseDialects[driver]
	if !ok {
		return errors.NotValidf("database driver %q", driver)
	}
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect(dialect); err != nil {
		return errors.Trace(err)
	}

	dir := path.Join("migrations", driver)
	var err error
	switch command {
	case "up":
		err = goose.UpContext(ctx, sqlDB, dir)
	case "down":
		err = goose.DownContext(ctx, sqlDB, dir)
	case "status":
		err = goose.StatusContext(ctx, sqlDB, dir)
	default:
		return errors.NotValidf("migrate command %q", command)
	}
	return errors.Annotatef(err, "migrate %s", command)
}

// MigrateUp applies all pending migrations to the database behind c.
// It is a no-op for the redis and memory backends.
func (c *Conn) MigrateUp(ctx context.Context) error {
	if c.DB == nil {
		return nil
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return errors.Trace(err)
	}
	return Migrate(ctx, sqlDB, c.Driver, "up")
}

// gooseLogger routes goose output through loggo.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	logger.Infof("%s", strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	logger.Criticalf("%s", strings.TrimSpace(fmt.Sprintf(format, v...)))
	os.Exit(1)
}
