// Package bot wires the adapters, the coordinator, the services and the
// transports into one runnable process.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/perbu/presensi/internal/advisory"
	"github.com/perbu/presensi/internal/chat"
	"github.com/perbu/presensi/internal/config"
	"github.com/perbu/presensi/internal/coordinator"
	"github.com/perbu/presensi/internal/db"
	"github.com/perbu/presensi/internal/service"
	"github.com/perbu/presensi/internal/verify"
	"github.com/perbu/presensi/internal/web"
	"golang.org/x/sync/errgroup"
)

// Bot owns the coordinator and everything that feeds it
type Bot struct {
	cfg      *config.Config
	logger   *slog.Logger
	services *service.Services
	coord    *coordinator.Coordinator[*verify.Report]
	router   *chat.Router
}

// New creates a bot with the configured checker and advisory provider
func New(ctx context.Context, cfg *config.Config, database *db.DB, logger *slog.Logger) (*Bot, error) {
	apiURL := cfg.GetAPIURL()
	if apiURL == "" {
		return nil, fmt.Errorf("checker URL not configured (set verify.api_url or %s)", cfg.Verify.APIURLEnv)
	}
	username, password := cfg.GetCredentials()
	if username == "" || password == "" {
		return nil, fmt.Errorf("checker credentials not configured (set %s and %s)", cfg.Verify.UsernameEnv, cfg.Verify.PasswordEnv)
	}
	checker := verify.NewClient(apiURL, username, password, nil).WithLogger(logger)

	advisor, err := advisory.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create advisory client: %w", err)
	}
	logger.Info("Advisory provider ready", "provider", advisor.Name(), "model", cfg.Advisory.Model)

	return NewWith(cfg, database, checker.Check, advisor.Ask, logger), nil
}

// NewWith creates a bot around the given external calls
func NewWith(cfg *config.Config, database *db.DB, check coordinator.VerifyFunc[*verify.Report], ask coordinator.AdviseFunc, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	services := service.New(database, cfg, logger)
	coord := coordinator.New(
		coordinator.Config{
			QueueCapacity:    cfg.Coordinator.QueueCapacity,
			ExclusiveTimeout: cfg.Coordinator.ExclusiveTimeout,
			QueuedTimeout:    cfg.Coordinator.QueuedTimeout,
		},
		check,
		ask,
		coordinator.WithLogger(logger),
		coordinator.WithRecorder(services.Recorder()),
	)

	return &Bot{
		cfg:      cfg,
		logger:   logger,
		services: services,
		coord:    coord,
		router:   chat.NewRouter(coord, cfg.Triggers, logger),
	}
}

// Coordinator returns the task coordinator
func (b *Bot) Coordinator() *coordinator.Coordinator[*verify.Report] {
	return b.coord
}

// Router returns the chat router
func (b *Bot) Router() *chat.Router {
	return b.router
}

// Services returns the service container
func (b *Bot) Services() *service.Services {
	return b.services
}

// Run starts the enabled transports and blocks until ctx is cancelled or
// one of them fails
func (b *Bot) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	transports := 0

	if b.cfg.Telegram.Enabled {
		tg, err := chat.NewTelegram(b.router, chat.TelegramOptions{
			APIURL:      b.cfg.Telegram.APIURL,
			Token:       b.cfg.GetTelegramToken(),
			PollTimeout: b.cfg.Telegram.PollTimeout,
			Allowed:     b.cfg.ChatAllowed,
			Logger:      b.logger,
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return tg.Run(gctx) })
		transports++
	}

	if b.cfg.Web.Enabled {
		server, err := web.NewServer(b.coord, b.services.History, web.Options{
			Host:       b.cfg.Web.Host,
			Port:       b.cfg.Web.Port,
			AuthHeader: b.cfg.Web.AuthHeader,
			APIToken:   b.cfg.GetWebAPIToken(),
			Logger:     b.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create web server: %w", err)
		}
		g.Go(func() error { return server.Run(gctx) })
		transports++
	}

	if transports == 0 {
		return fmt.Errorf("no transport enabled (enable telegram or web)")
	}
	return g.Wait()
}

// Close stops admission, fails queued work with a shutdown error and waits
// for running tasks and pending digests
func (b *Bot) Close(ctx context.Context) error {
	err := b.coord.Close(ctx)
	b.services.Wait()
	return err
}
