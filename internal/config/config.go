package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Storage backend names accepted in storage.backend
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Converter modes accepted in worker.converter.mode
const (
	ConverterModeCommand = "command"
	ConverterModeStub    = "stub"
)

// Config represents the complete application configuration
type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Worker   WorkerConfig   `yaml:"worker"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// MaxUploadSize bounds multipart upload bodies in bytes.
	MaxUploadSize int64 `yaml:"max_upload_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// StorageConfig selects the job store backend and the on-disk staging
// area for uploaded videos.
type StorageConfig struct {
	Backend   string      `yaml:"backend"`
	UploadDir string      `yaml:"upload_dir"`
	Sweep     SweepConfig `yaml:"sweep"`
}

// SweepConfig controls the orphan sweeper. Both ages default to zero,
// which disables the corresponding reclaim: jobs whose callback is
// permanently lost then stay processing, and undownloaded results are
// retained indefinitely.
type SweepConfig struct {
	Interval         time.Duration `yaml:"interval"`
	MaxProcessingAge time.Duration `yaml:"max_processing_age"`
	ResultTTL        time.Duration `yaml:"result_ttl"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DispatchConfig holds the orchestrator-to-worker dispatch settings.
// Retries use a multiplicative backoff; exhausting them fails the job.
type DispatchConfig struct {
	WorkerURL         string        `yaml:"worker_url"`
	CallbackURL       string        `yaml:"callback_url"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	ResultDir  string          `yaml:"result_dir"`
	TempDir    string          `yaml:"temp_dir"`
	QueueSize  int             `yaml:"queue_size"`
	JobTimeout time.Duration   `yaml:"job_timeout"`
	Converter  ConverterConfig `yaml:"converter"`
	Webhook    WebhookConfig   `yaml:"webhook"`
}

// ConverterConfig selects and parameterizes the conversion capability.
type ConverterConfig struct {
	Mode    string   `yaml:"mode"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// WebhookConfig holds the worker's callback delivery settings.
type WebhookConfig struct {
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// ValidateAPIConfig checks the fields the orchestrator service needs.
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Storage.UploadDir == "" {
		return fmt.Errorf("storage upload_dir is required")
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required for the redis backend")
		}
	case BackendPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required for the postgres backend")
		}
		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}

	if c.Dispatch.WorkerURL == "" {
		return fmt.Errorf("dispatch worker_url is required")
	}

	if c.Dispatch.CallbackURL == "" {
		return fmt.Errorf("dispatch callback_url is required")
	}

	if c.Dispatch.RetryAttempts <= 0 {
		return fmt.Errorf("dispatch retry_attempts must be greater than 0")
	}

	if c.Dispatch.RequestTimeout <= 0 {
		return fmt.Errorf("dispatch request_timeout must be greater than 0")
	}

	return nil
}

// ValidateWorkerConfig checks the fields the worker service needs.
func (c *Config) ValidateWorkerConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Worker.ResultDir == "" {
		return fmt.Errorf("worker result_dir is required")
	}

	if c.Worker.TempDir == "" {
		return fmt.Errorf("worker temp_dir is required")
	}

	if c.Worker.QueueSize <= 0 {
		return fmt.Errorf("worker queue_size must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	switch c.Worker.Converter.Mode {
	case ConverterModeStub:
	case ConverterModeCommand:
		if c.Worker.Converter.Command == "" {
			return fmt.Errorf("converter command is required in command mode")
		}
	default:
		return fmt.Errorf("unknown converter mode: %q", c.Worker.Converter.Mode)
	}

	if c.Worker.Webhook.RetryAttempts <= 0 {
		return fmt.Errorf("webhook retry_attempts must be greater than 0")
	}

	return nil
}
