// Package ninewheels assembles the earnings core for standalone serving
// or embedding into a larger router.
package ninewheels

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ninewheels/server/internal/blob"
	"github.com/ninewheels/server/internal/commission"
	"github.com/ninewheels/server/internal/config"
	"github.com/ninewheels/server/internal/enforcement"
	"github.com/ninewheels/server/internal/events"
	"github.com/ninewheels/server/internal/goldstatus"
	"github.com/ninewheels/server/internal/httpserver"
	"github.com/ninewheels/server/internal/lifecycle"
	"github.com/ninewheels/server/internal/logger"
	"github.com/ninewheels/server/internal/metrics"
	"github.com/ninewheels/server/internal/notify"
	"github.com/ninewheels/server/internal/orders"
	"github.com/ninewheels/server/internal/payouts"
	"github.com/ninewheels/server/internal/promos"
	"github.com/ninewheels/server/internal/referral"
	"github.com/ninewheels/server/internal/storage"
	"github.com/ninewheels/server/internal/streak"
	"github.com/ninewheels/server/internal/users"
	"github.com/ninewheels/server/internal/wallet"
)

// App wires the earnings, payout and incentive services.
type App struct {
	Config   *config.Config
	Store    storage.Store
	Bus      *events.Bus
	Users    *users.Service
	Orders   *orders.Service
	Wallet   *wallet.Ledger
	Promos   *promos.Service
	Referral *referral.Engine
	Streak   *streak.Engine
	Gold     *goldstatus.Engine
	Payouts  *payouts.Aggregator
	Actions  *enforcement.Actions
	Logger   zerolog.Logger

	sweeper          *enforcement.Sweeper
	router           chi.Router
	resourceManager  *lifecycle.Manager
	metricsCollector *metrics.Metrics
}

// Option configures App construction.
type Option func(*options)

type options struct {
	store  storage.Store
	router chi.Router
}

// WithStore sets a custom storage backend.
func WithStore(store storage.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithRouter registers routes onto an existing chi.Router.
func WithRouter(router chi.Router) Option {
	return func(o *options) {
		o.router = router
	}
}

// NewApp assembles every service against the configured backends.
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("ninewheels: config required")
	}

	optState := options{}
	for _, opt := range opts {
		opt(&optState)
	}

	appLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     "ninewheels-server",
		Environment: cfg.Logging.Environment,
	})

	app := &App{
		Config:          cfg,
		Logger:          appLogger,
		resourceManager: lifecycle.NewManager(),
	}

	if optState.store != nil {
		app.Store = optState.store
	} else {
		store, err := storage.New(storage.Config{
			Backend:         cfg.Storage.Backend,
			MongoDBURL:      cfg.Storage.MongoDBURL,
			MongoDBDatabase: cfg.Storage.MongoDBDatabase,
			QueryTimeout:    cfg.Storage.QueryTimeout.Duration,
		})
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		app.Store = store
		app.resourceManager.Register("storage", store)
		if cfg.Storage.Backend == "memory" {
			appLogger.Warn().Msg("using the in-memory store, data will not survive a restart")
		}
	}

	app.Bus = events.NewBus(appLogger)

	app.metricsCollector = metrics.New(prometheus.DefaultRegisterer)
	app.metricsCollector.BindBus(app.Bus)

	notifier := notify.New(cfg.Notifications, appLogger)
	notifier.BindBus(app.Bus)

	app.Promos = promos.New(app.Store, cfg.Promos.CacheTTL.Duration, appLogger)
	app.Wallet = wallet.New(app.Store, appLogger)

	splitter := commission.New(cfg.Commission.RatePercent)
	app.Orders = orders.New(app.Store, splitter, app.Bus, appLogger)
	app.Users = users.New(app.Store, appLogger)

	// Promotion engines subscribe themselves to the bus.
	app.Referral = referral.New(app.Store, app.Wallet, app.Promos, app.Bus, appLogger)
	app.Streak = streak.New(app.Store, app.Wallet, app.Promos, app.Bus, appLogger)
	app.Gold = goldstatus.New(app.Store, app.Promos, app.Bus, appLogger)

	grace := time.Duration(cfg.Enforcement.GracePeriodHours) * time.Hour
	app.Payouts = payouts.New(app.Store, app.Bus, cfg.PayoutLocation(), grace, appLogger)

	app.Actions = enforcement.NewActions(app.Store, app.Bus, appLogger)
	app.sweeper = enforcement.NewSweeper(app.Store, app.Actions, enforcement.SweeperConfig{
		Grace:        grace,
		StrikeWindow: time.Duration(cfg.Enforcement.StrikeWindowHours) * time.Hour,
		MaxStrikes:   cfg.Enforcement.MaxStrikes,
		Tick:         cfg.Enforcement.TickInterval.Duration,
		PageSize:     cfg.Enforcement.PageSize,
	}, appLogger)

	proofs, err := blob.NewFileStore(cfg.Uploads.Dir, cfg.Uploads.MaxSizeBytes)
	if err != nil {
		return nil, fmt.Errorf("init proof store: %w", err)
	}

	if optState.router != nil {
		app.router = optState.router
	} else {
		app.router = chi.NewRouter()
	}

	httpserver.ConfigureRouter(app.router, httpserver.Deps{
		Config:   cfg,
		Store:    app.Store,
		Users:    app.Users,
		Orders:   app.Orders,
		Wallet:   app.Wallet,
		Promos:   app.Promos,
		Referral: app.Referral,
		Gold:     app.Gold,
		Payouts:  app.Payouts,
		Actions:  app.Actions,
		Proofs:   proofs,
		Metrics:  app.metricsCollector,
		Logger:   appLogger,
	})

	return app, nil
}

// RunBackground starts the enforcement sweep, gold expiry scan and
// weekly payout backfill. They stop when the context is cancelled.
func (a *App) RunBackground(ctx context.Context) {
	go a.sweeper.Run(ctx)
	go a.Gold.RunExpiryScan(ctx, a.Config.Enforcement.TickInterval.Duration, a.Config.Enforcement.PageSize)
	go a.Payouts.RunWeeklyGeneration(ctx, time.Hour)
}

// Router returns the chi router with all routes registered.
func (a *App) Router() chi.Router {
	return a.router
}

// Handler exposes the router as an http.Handler.
func (a *App) Handler() http.Handler {
	return a.router
}

// Close releases resources owned by the app.
func (a *App) Close() error {
	return a.resourceManager.Close()
}

// Config is an exported alias of the internal configuration struct for
// embedding use.
type Config = config.Config

// LoadConfig wraps the internal loader for consumers embedding the core.
func LoadConfig(path string) (*config.Config, error) {
	return config.Load(path)
}
