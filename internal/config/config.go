package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/schedule"
)

type Config struct {
	App     AppConfig      `yaml:"app"`
	Server  ServerConfig   `yaml:"server"`
	Store   StoreConfig    `yaml:"store"`
	Redis   RedisConfig    `yaml:"redis"`
	Storage StorageConfig  `yaml:"storage"`
	Tenants []TenantConfig `yaml:"tenants"`
	Workers WorkersConfig  `yaml:"workers"`
	Logging LoggingConfig  `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig locates the local SQLite database holding the observation
// queue, credentials and station reference data.
type StoreConfig struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

type RedisConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	PoolSize       int    `yaml:"pool_size"`
	DrainQueue     string `yaml:"drain_queue"`
	IngestionQueue string `yaml:"ingestion_queue"`
	DLQSuffix      string `yaml:"dlq_suffix"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	UseSSL        bool   `yaml:"use_ssl"`
	ArchivePrefix string `yaml:"archive_prefix"`
}

// TenantConfig describes one deployment the engine submits to. Each tenant
// has its own authentication realm and API base address.
type TenantConfig struct {
	ID               string        `yaml:"id"`
	BaseURL          string        `yaml:"base_url"`
	RefreshEndpoint  string        `yaml:"refresh_endpoint"`
	SubmitEndpoint   string        `yaml:"submit_endpoint"`
	StationsEndpoint string        `yaml:"stations_endpoint"`
	MappingsEndpoint string        `yaml:"mappings_endpoint"`
	AppVersion       string        `yaml:"app_version"`
	Timeout          time.Duration `yaml:"timeout"`
	RetryAttempts    int           `yaml:"retry_attempts"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	DefaultSchedule  schedule.Spec `yaml:"default_schedule"`
}

type WorkersConfig struct {
	Drain     DrainWorkerConfig     `yaml:"drain"`
	Ingestion IngestionWorkerConfig `yaml:"ingestion"`
	Pull      PullWorkerConfig      `yaml:"pull"`
	Archive   ArchiveWorkerConfig   `yaml:"archive"`
}

type DrainWorkerConfig struct {
	Count      int           `yaml:"count"`
	BatchSize  int           `yaml:"batch_size"`
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type IngestionWorkerConfig struct {
	Count       int  `yaml:"count"`
	SkipBadRows bool `yaml:"skip_bad_rows"`
}

type PullWorkerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	RunOnStart bool          `yaml:"run_on_start"`
}

type ArchiveWorkerConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Store.BusyTimeout == 0 {
		c.Store.BusyTimeout = 5 * time.Second
	}
	if c.Workers.Drain.BatchSize == 0 {
		c.Workers.Drain.BatchSize = 10
	}
	if c.Workers.Drain.StaleAfter == 0 {
		c.Workers.Drain.StaleAfter = 15 * time.Minute
	}
	if c.Workers.Drain.Count == 0 {
		c.Workers.Drain.Count = 2
	}
	if c.Workers.Ingestion.Count == 0 {
		c.Workers.Ingestion.Count = 1
	}
	if c.Storage.S3.ArchivePrefix == "" {
		c.Storage.S3.ArchivePrefix = "archive"
	}
	for i := range c.Tenants {
		t := &c.Tenants[i]
		if t.Timeout == 0 {
			t.Timeout = 60 * time.Second
		}
		if t.RetryAttempts == 0 {
			t.RetryAttempts = 3
		}
		if t.RetryDelay == 0 {
			t.RetryDelay = 2 * time.Second
		}
	}
}

// Tenant returns the configuration for one tenant id.
func (c *Config) Tenant(id string) (*TenantConfig, bool) {
	for i := range c.Tenants {
		if c.Tenants[i].ID == id {
			return &c.Tenants[i], true
		}
	}
	return nil, false
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
