package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/meridianhq/crm-backoffice/pkg/logging"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if fs.FileExists(file) {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"crm_backoffice"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

// StagingOptions controls the writable area uploaded files wait in before an
// import job consumes them.
type StagingOptions struct {
	Dir           string        `env:"STAGING_DIR" envDefault:"static/staging"`
	TTL           time.Duration `env:"STAGING_TTL" envDefault:"24h"`
	MaxUploadSize int64         `env:"MAX_UPLOAD_SIZE" envDefault:"52428800"`
}

type ImportWorkerOptions struct {
	Enabled       bool          `env:"IMPORT_WORKER_ENABLED" envDefault:"true"`
	PollInterval  time.Duration `env:"IMPORT_WORKER_POLL_INTERVAL" envDefault:"1s"`
	LockTTL       time.Duration `env:"IMPORT_WORKER_LOCK_TTL" envDefault:"10m"`
	MaxAttempts   int           `env:"IMPORT_WORKER_MAX_ATTEMPTS" envDefault:"3"`
	ProgressBatch int           `env:"IMPORT_WORKER_PROGRESS_BATCH" envDefault:"100"`
	WriteChunk    int           `env:"IMPORT_WORKER_WRITE_CHUNK" envDefault:"500"`
	CleanupEvery  time.Duration `env:"IMPORT_STAGING_CLEANUP_INTERVAL" envDefault:"10m"`
}

func (o *ImportWorkerOptions) Validate() error {
	if o.MaxAttempts <= 0 {
		return fmt.Errorf("import worker MaxAttempts must be positive, got %d", o.MaxAttempts)
	}
	if o.ProgressBatch <= 0 {
		return fmt.Errorf("import worker ProgressBatch must be positive, got %d", o.ProgressBatch)
	}
	if o.WriteChunk <= 0 {
		return fmt.Errorf("import worker WriteChunk must be positive, got %d", o.WriteChunk)
	}
	return nil
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type Configuration struct {
	Database     DatabaseOptions
	Staging      StagingOptions
	ImportWorker ImportWorkerOptions
	Prometheus   PrometheusOptions

	MigrationsEnabled bool          `env:"MIGRATIONS_ENABLED" envDefault:"true"`
	ServerPort        int           `env:"PORT" envDefault:"3200"`
	GoAppEnvironment  string        `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress     string        `env:"-"`
	Domain            string        `env:"DOMAIN" envDefault:"localhost"`
	PageSize          int           `env:"PAGE_SIZE" envDefault:"25"`
	MaxPageSize       int           `env:"MAX_PAGE_SIZE" envDefault:"100"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"error"`
	LogPath           string        `env:"LOG_PATH" envDefault:"./logs/app.log"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// The server looks for this header in the request; if it's not present, a
	// random uuidv4 is generated.
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	// Headers the external auth layer forwards the caller identity in.
	TenantIDHeader string `env:"TENANT_ID_HEADER" envDefault:"X-Tenant-ID"`
	UserIDHeader   string `env:"USER_ID_HEADER" envDefault:"X-User-ID"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func (c *Configuration) Scheme() string {
	if c.GoAppEnvironment == Production {
		return "https"
	}
	return "http"
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.ImportWorker.Validate(); err != nil {
		return fmt.Errorf("import worker configuration error: %w", err)
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}

	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
