// Package server initializes and runs the messaging server: it opens the
// database, wires the services to the connection registry and starts the
// WebSocket endpoint with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmaft/dmaft-server/internal/logging"
	"github.com/dmaft/dmaft-server/internal/server/config"
	"github.com/dmaft/dmaft-server/internal/server/registry"
	"github.com/dmaft/dmaft-server/internal/server/repositories/repomanager"
	"github.com/dmaft/dmaft-server/internal/server/services"
	"github.com/dmaft/dmaft-server/internal/server/ws"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	registry *registry.Registry
	server   *ws.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	manager, db, err := repomanager.New(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	reg := registry.New(logger)
	delivery := services.NewDeliveryService(manager.Mailbox(), reg, logger)
	auth := services.NewAuthService(manager.Users(), manager.Challenges(), manager.Tokens(),
		cfg.ChallengeValidity, cfg.TokenValidity, logger)
	conversations := services.NewConversationService(manager.Users(), manager.Conversations(),
		delivery, cfg.NoticeRetention, logger)
	messages := services.NewMessageService(manager.Conversations(), delivery, cfg.MessageRetention, logger)
	profiles := services.NewProfileService(manager.Users(), logger)

	dispatcher := ws.NewDispatcher(auth, conversations, messages, profiles, delivery, reg, logger)
	server := ws.NewServer(cfg.EndpointAddr, cfg.TLSCertFile, cfg.TLSKeyFile, cfg.MaxFrameBytes,
		reg, dispatcher, logger)

	return &App{config: cfg, logger: logger, db: db, registry: reg, server: server}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "addr", app.config.EndpointAddr, "driver", app.config.DatabaseDriver)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err.Error())
	}
	app.logger.Info(ctx, "Shutdown complete")
}
