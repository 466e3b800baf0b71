package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/meridianhq/crm-backoffice/pkg/application"
	"github.com/meridianhq/crm-backoffice/pkg/configuration"
	"github.com/meridianhq/crm-backoffice/pkg/constants"
	"github.com/meridianhq/crm-backoffice/pkg/httpapi"
	"github.com/meridianhq/crm-backoffice/pkg/metrics"
	"github.com/meridianhq/crm-backoffice/pkg/middleware"
	"github.com/meridianhq/crm-backoffice/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Application   application.Application
	Pool          *pgxpool.Pool
}

func Default(options *DefaultOptions) (*server.HTTPServer, error) {
	app := options.Application

	app.RegisterMiddleware(
		middleware.WithLogger(options.Logger),
		middleware.Provide(constants.AppKey, app),
		middleware.Provide(constants.PoolKey, options.Pool),
		middleware.RequestParams(),
	)

	app.RegisterControllers(newHealthController())
	if options.Configuration.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(options.Configuration.Prometheus.Path))
	}

	return server.NewHTTPServer(app), nil
}

type healthController struct{}

func newHealthController() application.Controller {
	return &healthController{}
}

func (c *healthController) Key() string {
	return "/health"
}

func (c *healthController) Register(r *mux.Router) {
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
}
