// Package config loads msync configuration.
//
// Values are layered: defaults, then the YAML file, then a .env file, then
// MSYNC_* environment variables. The result is validated before use.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultEnvFile is read when present in the working directory.
const DefaultEnvFile = ".env"

// Config is the complete msync configuration.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Integration IntegrationConfig `yaml:"integration"`
	Lock        LockConfig        `yaml:"lock"`
	Audit       AuditConfig       `yaml:"audit"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Log         LogConfig         `yaml:"log"`
}

// DatabaseConfig selects the store.
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite3 postgres"`
	DSN    string `yaml:"dsn" validate:"required"`
}

// IntegrationConfig tunes the integration driver.
type IntegrationConfig struct {
	SiteID     string        `yaml:"site_id" validate:"required"`
	Interval   time.Duration `yaml:"interval" validate:"gt=0"`
	MaxBackoff time.Duration `yaml:"max_backoff" validate:"gtefield=Interval"`
	BatchSize  int           `yaml:"batch_size" validate:"gte=0"`
}

// LockConfig selects the single-flight lock. The redis backend is needed
// when several processes integrate into one store.
type LockConfig struct {
	Backend       string        `yaml:"backend" validate:"oneof=local redis"`
	RedisAddr     string        `yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db" validate:"gte=0"`
	KeyPrefix     string        `yaml:"key_prefix"`
	TTL           time.Duration `yaml:"ttl" validate:"gt=0"`
}

// AuditConfig enables the Kafka audit sink when brokers are set.
type AuditConfig struct {
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic" validate:"required_with=KafkaBrokers"`
}

// MetricsConfig enables the /metrics endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "msync.db",
		},
		Integration: IntegrationConfig{
			SiteID:     "default",
			Interval:   30 * time.Second,
			MaxBackoff: 5 * time.Minute,
			BatchSize:  0,
		},
		Lock: LockConfig{
			Backend:   "local",
			KeyPrefix: "msync:lock:",
			TTL:       5 * time.Minute,
		},
		Audit: AuditConfig{
			KafkaTopic: "msync.integration",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration. An empty path skips the YAML file; a
// missing .env file is ignored.
func Load(path string) (Config, error) {
	return load(path, DefaultEnvFile)
}

func load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		// godotenv.Load never overrides variables already set.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type override struct {
	name string
	set  func(*Config, string) error
}

var overrides = []override{
	{"MSYNC_DATABASE_DRIVER", func(c *Config, v string) error { c.Database.Driver = v; return nil }},
	{"MSYNC_DATABASE_DSN", func(c *Config, v string) error { c.Database.DSN = v; return nil }},
	{"MSYNC_SITE_ID", func(c *Config, v string) error { c.Integration.SiteID = v; return nil }},
	{"MSYNC_INTERVAL", durationVar(func(c *Config) *time.Duration { return &c.Integration.Interval })},
	{"MSYNC_MAX_BACKOFF", durationVar(func(c *Config) *time.Duration { return &c.Integration.MaxBackoff })},
	{"MSYNC_BATCH_SIZE", intVar(func(c *Config) *int { return &c.Integration.BatchSize })},
	{"MSYNC_LOCK_BACKEND", func(c *Config, v string) error { c.Lock.Backend = v; return nil }},
	{"MSYNC_REDIS_ADDR", func(c *Config, v string) error { c.Lock.RedisAddr = v; return nil }},
	{"MSYNC_REDIS_PASSWORD", func(c *Config, v string) error { c.Lock.RedisPassword = v; return nil }},
	{"MSYNC_REDIS_DB", intVar(func(c *Config) *int { return &c.Lock.RedisDB })},
	{"MSYNC_LOCK_TTL", durationVar(func(c *Config) *time.Duration { return &c.Lock.TTL })},
	{"MSYNC_KAFKA_BROKERS", func(c *Config, v string) error { c.Audit.KafkaBrokers = splitList(v); return nil }},
	{"MSYNC_KAFKA_TOPIC", func(c *Config, v string) error { c.Audit.KafkaTopic = v; return nil }},
	{"MSYNC_METRICS_ADDR", func(c *Config, v string) error { c.Metrics.Addr = v; return nil }},
	{"MSYNC_LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = strings.ToLower(v); return nil }},
	{"MSYNC_LOG_PRETTY", boolVar(func(c *Config) *bool { return &c.Log.Pretty })},
}

func applyEnv(cfg *Config) error {
	for _, o := range overrides {
		v, ok := os.LookupEnv(o.name)
		if !ok {
			continue
		}
		if err := o.set(cfg, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%s: %w", o.name, err)
		}
	}
	return nil
}

func durationVar(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func intVar(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func boolVar(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field rule and reports all failures at once.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (got %v)", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
