package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianhq/crm-backoffice/internal/server"
	"github.com/meridianhq/crm-backoffice/modules"
	"github.com/meridianhq/crm-backoffice/modules/crm"
	"github.com/meridianhq/crm-backoffice/pkg/application"
	"github.com/meridianhq/crm-backoffice/pkg/configuration"
	"github.com/meridianhq/crm-backoffice/pkg/eventbus"
)

func main() {
	conf := configuration.Use()
	defer conf.Unload()
	logger := conf.Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		logger.WithError(err).Fatal("failed to create database pool")
	}
	defer pool.Close()

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
		Bundle:   application.LoadBundle(),
	})
	if err := modules.Load(app); err != nil {
		logger.WithError(err).Fatal("failed to load modules")
	}

	if conf.MigrationsEnabled {
		if err := app.Migrations().Run(ctx); err != nil {
			logger.WithError(err).Fatal("failed to run migrations")
		}
	}

	if conf.ImportWorker.Enabled {
		go crm.NewWorker(app).Run(ctx)
	}

	srv, err := server.Default(&server.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		Pool:          pool,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to build server")
	}

	logger.WithField("address", conf.SocketAddress).Info("listening")
	if err := srv.Start(conf.SocketAddress); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}
