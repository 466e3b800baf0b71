package application

import (
	"embed"
	"encoding/json"
	"reflect"

	"github.com/BurntSushi/toml"
	"github.com/gorilla/mux"
	"github.com/iota-uz/go-i18n/v2/i18n"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/meridianhq/crm-backoffice/pkg/eventbus"
)

// Controller is a routable unit registered on the root router.
type Controller interface {
	Key() string
	Register(r *mux.Router)
}

// Module wires a vertical (services, controllers, schema) into the app.
type Module interface {
	Name() string
	Register(app Application) error
}

type Application interface {
	Pool() *pgxpool.Pool
	EventPublisher() eventbus.EventBus
	Logger() *logrus.Logger
	Bundle() *i18n.Bundle

	RegisterServices(services ...interface{})
	Service(service interface{}) interface{}

	RegisterControllers(controllers ...Controller)
	Controllers() []Controller

	RegisterMiddleware(middleware ...mux.MiddlewareFunc)
	Middleware() []mux.MiddlewareFunc

	RegisterLocaleFiles(fs ...*embed.FS)
	Migrations() *MigrationManager
}

type ApplicationOptions struct {
	Pool     *pgxpool.Pool
	EventBus eventbus.EventBus
	Logger   *logrus.Logger
	Bundle   *i18n.Bundle
}

func LoadBundle() *i18n.Bundle {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	return bundle
}

func New(opts *ApplicationOptions) Application {
	return &application{
		pool:       opts.Pool,
		eventBus:   opts.EventBus,
		logger:     opts.Logger,
		bundle:     opts.Bundle,
		services:   map[reflect.Type]interface{}{},
		migrations: NewMigrationManager(opts.Pool, opts.Logger),
	}
}

type application struct {
	pool        *pgxpool.Pool
	eventBus    eventbus.EventBus
	logger      *logrus.Logger
	bundle      *i18n.Bundle
	services    map[reflect.Type]interface{}
	controllers []Controller
	middleware  []mux.MiddlewareFunc
	migrations  *MigrationManager
}

func (a *application) Pool() *pgxpool.Pool {
	return a.pool
}

func (a *application) EventPublisher() eventbus.EventBus {
	return a.eventBus
}

func (a *application) Logger() *logrus.Logger {
	return a.logger
}

func (a *application) Bundle() *i18n.Bundle {
	return a.bundle
}

func (a *application) RegisterServices(services ...interface{}) {
	for _, service := range services {
		t := reflect.TypeOf(service)
		if t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		a.services[t] = service
	}
}

// Service looks up a registered service by the (value) type of its argument.
func (a *application) Service(service interface{}) interface{} {
	t := reflect.TypeOf(service)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	svc, ok := a.services[t]
	if !ok {
		panic("service not registered: " + t.String())
	}
	return svc
}

func (a *application) RegisterControllers(controllers ...Controller) {
	a.controllers = append(a.controllers, controllers...)
}

func (a *application) Controllers() []Controller {
	return a.controllers
}

func (a *application) RegisterMiddleware(middleware ...mux.MiddlewareFunc) {
	a.middleware = append(a.middleware, middleware...)
}

func (a *application) Middleware() []mux.MiddlewareFunc {
	return a.middleware
}

func (a *application) RegisterLocaleFiles(fsList ...*embed.FS) {
	for _, fsys := range fsList {
		entries, err := fsys.ReadDir(".")
		if err != nil {
			a.loadLocaleDir(fsys, ".")
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				a.loadLocaleDir(fsys, entry.Name())
			} else {
				a.loadLocaleFile(fsys, entry.Name())
			}
		}
	}
}

func (a *application) loadLocaleDir(fsys *embed.FS, dir string) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		a.logger.WithError(err).Warnf("failed to read locale dir %s", dir)
		return
	}
	for _, entry := range entries {
		name := dir + "/" + entry.Name()
		if entry.IsDir() {
			a.loadLocaleDir(fsys, name)
			continue
		}
		a.loadLocaleFile(fsys, name)
	}
}

func (a *application) loadLocaleFile(fsys *embed.FS, path string) {
	if _, err := a.bundle.LoadMessageFileFS(fsys, path); err != nil {
		a.logger.WithError(err).Warnf("failed to load locale file %s", path)
	}
}

func (a *application) Migrations() *MigrationManager {
	return a.migrations
}
