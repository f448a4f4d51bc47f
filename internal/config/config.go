package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/opensciencearchive/server-sub000/internal/logging"
)

// DatabaseConfig controls the Postgres connection the event repository and
// domain stores open against.
type DatabaseConfig struct {
	DSN             string `yaml:"dsn" env:"DATABASE_DSN"`
	Host            string `yaml:"host" env:"DATABASE_HOST,default=localhost"`
	Port            int    `yaml:"port" env:"DATABASE_PORT,default=5432"`
	User            string `yaml:"user" env:"DATABASE_USER,default=osa"`
	Password        string `yaml:"password" env:"DATABASE_PASSWORD"`
	Name            string `yaml:"name" env:"DATABASE_NAME,default=osa"`
	SSLMode         string `yaml:"sslmode" env:"DATABASE_SSLMODE,default=disable"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds" env:"DATABASE_CONN_MAX_LIFETIME,default=300"`
	MigrateOnStart  bool   `yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START,default=true"`
}

// ConnectionString builds a libpq keyword/value DSN from the discrete fields
// when DSN itself is unset.
func (c DatabaseConfig) ConnectionString() string {
	if strings.TrimSpace(c.DSN) != "" {
		return c.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// OutboxConfig tunes pool-wide outbox behaviour not owned by any one worker.
type OutboxConfig struct {
	StaleClaimIntervalSeconds int `yaml:"stale_claim_interval_seconds" env:"OUTBOX_STALE_CLAIM_INTERVAL_SECONDS,default=30"`
}

// WorkerDefaults holds pool-wide worker settings loaded from file and env.
// Nothing applies them to handler registrations: each pipeline registration
// sets every WorkerConfig field itself, and these values are not read. The
// janitor's stale-claim timeout is deliberately not here: BuildPool
// derives it from the registrations' own ClaimTimeout values instead of an
// independently configured floor, so it can never reclaim a delivery sooner
// than the handler processing it expects.
type WorkerDefaults struct {
	BatchSize   int `yaml:"batch_size" env:"WORKER_BATCH_SIZE,default=1"`
	PollSeconds int `yaml:"poll_interval_seconds" env:"WORKER_POLL_INTERVAL_SECONDS,default=2"`
	MaxRetries  int `yaml:"max_retries" env:"WORKER_MAX_RETRIES,default=3"`
}

// SchedulerConfig controls the cron scheduler's own sweep cadence.
type SchedulerConfig struct {
	JanitorIntervalSeconds int `yaml:"janitor_interval_seconds" env:"SCHEDULER_JANITOR_INTERVAL_SECONDS,default=30"`
}

// MetricsConfig controls the ops-only Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"METRICS_ADDR,default=:9090"`
}

// Config aggregates every ambient concern the core needs. ServerConfig-style
// HTTP binding is deliberately absent: the REST surface is an external
// collaborator, not this module's concern.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Logging   logging.Config  `yaml:"logging"`
	Outbox    OutboxConfig    `yaml:"outbox"`
	Worker    WorkerDefaults  `yaml:"worker"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	FilesRoot string          `yaml:"files_root" env:"FILES_ROOT,default=./data"`
}

// New returns a Config populated with defaults, kept separate from the
// env/file decoding in Load.
func New() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host: "localhost", Port: 5432, User: "osa", Name: "osa", SSLMode: "disable",
			MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: 300, MigrateOnStart: true,
		},
		Logging:   logging.Config{Level: "info", Format: "text"},
		Outbox:    OutboxConfig{StaleClaimIntervalSeconds: 30},
		Worker:    WorkerDefaults{BatchSize: 1, PollSeconds: 2, MaxRetries: 3},
		Scheduler: SchedulerConfig{JanitorIntervalSeconds: 30},
		Metrics:   MetricsConfig{Addr: ":9090"},
		FilesRoot: "./data",
	}
}

// Load reads a .env file if present, applies an optional YAML file named by
// CONFIG_FILE (or ./configs/config.yaml if unset), then overlays environment
// variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		path = "configs/config.yaml"
	}
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "no target field") {
			return nil, fmt.Errorf("config: decode env: %w", err)
		}
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// ConnMaxLifetimeDuration returns the configured pooled-connection lifetime
// as a time.Duration.
func (c DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Second
}
