package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/perbu/presensi/internal/bot"
	"github.com/perbu/presensi/internal/config"
	"github.com/perbu/presensi/internal/db"
)

// shutdownGrace bounds how long a command waits for running tasks on exit
const shutdownGrace = 10 * time.Second

// Context holds common dependencies for CLI commands
type Context struct {
	Ctx     context.Context
	Config  *config.Config
	Logger  *slog.Logger
	Out     io.Writer
	Verbose bool
	Quiet   bool

	db *db.DB
}

// DB opens the task history database on first use
func (c *Context) DB() (*db.DB, error) {
	if c.db != nil {
		return c.db, nil
	}
	if c.Config.Database.Driver == config.DriverSQLite {
		if err := c.Config.EnsureDataDir(); err != nil {
			return nil, err
		}
	}
	database, err := db.Open(c.Config.Database.Driver, c.Config.GetDatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	c.db = database
	return database, nil
}

// Close releases the database if it was opened
func (c *Context) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Context) newBot() (*bot.Bot, error) {
	database, err := c.DB()
	if err != nil {
		return nil, err
	}
	return bot.New(c.Ctx, c.Config, database, c.Logger)
}

// closeBot drains the bot within the grace period
func (c *Context) closeBot(b *bot.Bot) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := b.Close(ctx); err != nil {
		c.Logger.Warn("Shutdown did not finish cleanly", "error", err)
	}
}

func (c *Context) printf(format string, args ...any) {
	if !c.Quiet {
		fmt.Fprintf(c.Out, format, args...)
	}
}
