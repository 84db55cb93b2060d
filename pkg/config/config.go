package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	FeatureFlags FeatureFlagsConfig
	Parser       ParserConfig
	Upload       UploadConfig
	Products     ProductsConfig
	Cron         CronConfig
	Worker       WorkerConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GROCERYLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"GROCERYLEDGER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GROCERYLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GROCERYLEDGER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"GROCERYLEDGER_DB_DSN"`
	Driver string `envconfig:"GROCERYLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GROCERYLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"GROCERYLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GROCERYLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"GROCERYLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"GROCERYLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"GROCERYLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GROCERYLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GROCERYLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GROCERYLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GROCERYLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"GROCERYLEDGER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"GROCERYLEDGER_AUTO_MIGRATE" default:"false"`
}

// ParserConfig bounds the external document parser invocations.
type ParserConfig struct {
	Workers  int               `envconfig:"GROCERYLEDGER_PARSER_WORKERS" default:"4"`
	Timeout  time.Duration     `envconfig:"GROCERYLEDGER_PARSER_TIMEOUT" default:"60s"`
	Commands map[string]string `envconfig:"GROCERYLEDGER_PARSER_COMMANDS"`
}

type UploadConfig struct {
	MaxUploadMB int `envconfig:"GROCERYLEDGER_MAX_UPLOAD_MB" default:"32"`
}

// ProductsConfig configures the deposit/return noise filter applied when
// listing products.
type ProductsConfig struct {
	NoisePrefixes []string `envconfig:"GROCERYLEDGER_PRODUCT_NOISE_PREFIXES" default:"pant"`
}

type CronConfig struct {
	OrphanSweepInterval time.Duration `envconfig:"GROCERYLEDGER_ORPHAN_SWEEP_INTERVAL" default:"1h"`
	// OrphanSweepGrace protects uploads whose import is still in flight.
	OrphanSweepGrace time.Duration `envconfig:"GROCERYLEDGER_ORPHAN_SWEEP_GRACE" default:"1h"`
}

// WorkerConfig configures the worker binary's own listener, which only
// serves metrics.
type WorkerConfig struct {
	MetricsPort string `envconfig:"GROCERYLEDGER_WORKER_METRICS_PORT" default:"9091"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
