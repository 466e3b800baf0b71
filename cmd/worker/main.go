package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianhq/crm-backoffice/modules"
	"github.com/meridianhq/crm-backoffice/modules/crm"
	"github.com/meridianhq/crm-backoffice/pkg/application"
	"github.com/meridianhq/crm-backoffice/pkg/configuration"
	"github.com/meridianhq/crm-backoffice/pkg/eventbus"
)

// Standalone import worker. The server runs an embedded worker by default;
// this binary exists for deployments that scale import throughput
// independently of the API.
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

	crm.NewWorker(app).Run(ctx)
}
