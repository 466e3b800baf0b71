package crm

import (
	"embed"

	"github.com/sirupsen/logrus"

	"github.com/meridianhq/crm-backoffice/modules/crm/importer"
	"github.com/meridianhq/crm-backoffice/modules/crm/infrastructure/persistence"
	"github.com/meridianhq/crm-backoffice/modules/crm/presentation/controllers"
	"github.com/meridianhq/crm-backoffice/modules/crm/services"
	"github.com/meridianhq/crm-backoffice/pkg/application"
	"github.com/meridianhq/crm-backoffice/pkg/configuration"
)

//go:embed presentation/locales/*.json
var localeFiles embed.FS

type Module struct{}

func NewModule() application.Module {
	return &Module{}
}

func (m *Module) Name() string {
	return "crm"
}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()

	customers := persistence.NewCustomerRepository()
	products := persistence.NewProductRepository()
	interactions := persistence.NewInteractionRepository()
	stagedFiles := persistence.NewStagedFileRepository()
	jobs := persistence.NewImportJobRepository()
	queue := persistence.NewImportQueue()

	registry := importer.NewRegistry()
	registry.Register(importer.NewCustomerProfile(customers))
	registry.Register(importer.NewProductProfile(products))
	registry.Register(importer.NewInteractionProfile(interactions, customers, products))

	staging := importer.NewStagingService(
		stagedFiles,
		conf.Staging.Dir,
		conf.Staging.TTL,
		conf.Staging.MaxUploadSize,
		app.Logger(),
	)

	app.RegisterServices(
		registry,
		staging,
		services.NewImportService(registry, staging, jobs, queue, conf.Staging.Dir),
	)
	app.RegisterControllers(controllers.NewImportAPIController(app))
	app.RegisterLocaleFiles(&localeFiles)
	app.Migrations().RegisterSchema(&persistence.MigrationFiles)

	// Audit trail for finished imports.
	app.EventPublisher().Subscribe(func(event importer.JobCompletedEvent) {
		app.Logger().WithFields(logrus.Fields{
			"job_id":    event.JobID.String(),
			"tenant_id": event.TenantID.String(),
			"user_id":   event.UserID.String(),
			"entity":    event.EntityKind,
			"status":    event.Status,
			"total":     event.TotalRecords,
			"success":   event.SuccessCount,
			"failure":   event.FailureCount,
			"took":      event.Duration.String(),
		}).Info("import job audit")
	})
	return nil
}

// NewWorker builds the queue worker from the module's registered services.
// Run in its own goroutine (or a dedicated process via cmd/worker).
func NewWorker(app application.Application) *importer.Worker {
	conf := configuration.Use()
	return importer.NewWorker(
		app.Pool(),
		persistence.NewImportQueue(),
		persistence.NewImportJobRepository(),
		app.Service(&importer.Registry{}).(*importer.Registry),
		app.Service(importer.StagingService{}).(*importer.StagingService),
		app.EventPublisher(),
		app.Logger(),
		importer.WorkerOptions{
			PollInterval:  conf.ImportWorker.PollInterval,
			LockTTL:       conf.ImportWorker.LockTTL,
			MaxAttempts:   conf.ImportWorker.MaxAttempts,
			ProgressBatch: conf.ImportWorker.ProgressBatch,
			WriteChunk:    conf.ImportWorker.WriteChunk,
			CleanupEvery:  conf.ImportWorker.CleanupEvery,
		},
	)
}
