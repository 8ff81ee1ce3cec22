// Package app assembles the parts request bot: configuration, database,
// session store, mailer, dispatcher and the Telegram wiring.
package app

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/asiatek/partsbot/internal/background"
	"github.com/asiatek/partsbot/internal/bot"
	"github.com/asiatek/partsbot/internal/config"
	"github.com/asiatek/partsbot/internal/database"
	"github.com/asiatek/partsbot/internal/logger"
	"github.com/asiatek/partsbot/internal/mailer"
	"github.com/asiatek/partsbot/internal/order"
	"github.com/asiatek/partsbot/internal/session"
	tg "github.com/asiatek/partsbot/internal/telegram"
	"github.com/asiatek/partsbot/internal/telegram/router"
)

// App holds the assembled components for the bot process.
type App struct {
	cfg        *config.Config
	db         *sqlx.DB
	sessions   session.Manager
	dispatcher *background.Dispatcher
	handlers   *bot.Handlers
	registry   *tg.Registry

	// closeSessions is set when the session store owns resources.
	closeSessions func() error
}

// New runs the bootstrap pipeline: logger, database, migrations, then the
// application services on top.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config provided")
	}

	if err := logger.InitLogger(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("app: logger init failed: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("app: database initialization failed: %w", err)
	}

	if err := database.RunMigrations(cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("app: migrations failed: %w", err)
	}

	a := &App{cfg: cfg, db: db}

	if dir := cfg.Sessions.Dir; dir != "" {
		ttl := time.Duration(cfg.Sessions.TTLHours) * time.Hour
		store, err := session.NewBadgerManager(dir, ttl)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("app: session store init failed: %w", err)
		}
		a.sessions = store
		a.closeSessions = store.Close
	} else {
		a.sessions = session.NewMemoryManager()
	}

	a.dispatcher = background.NewDispatcher(background.Options{})

	repo := order.NewPostgresRepository(db)
	notifier := mailer.New(cfg.Mail)
	engine := bot.NewEngine(a.sessions, repo, notifier, a.dispatcher)
	a.handlers = bot.NewHandlers(engine)

	a.registry = tg.NewRegistry()
	a.handlers.Register(a.registry)

	return a, nil
}

// TelegramRunOptions builds the run options consumed by tg.RunTelegram.
func (a *App) TelegramRunOptions() tg.RunOptions {
	routes := []tg.Route{
		router.TextRoute(a.handlers, a.registry, router.TextOptions{}),
		router.CallbackRoute(a.registry),
	}
	routes = append(routes, router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
	})...)

	return tg.RunOptions{
		Config:      a.cfg,
		Registry:    a.registry,
		Dispatcher:  a.dispatcher,
		Middlewares: tg.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
	}
}

// Close releases resources in reverse dependency order. The dispatcher is
// closed by RunTelegram before this runs.
func (a *App) Close() error {
	var firstErr error
	if a.closeSessions != nil {
		if err := a.closeSessions(); err != nil {
			firstErr = err
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
