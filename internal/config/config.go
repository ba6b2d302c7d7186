package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/samims/ctxrelay/pkg/tracing"
)

const (
	DispatchAsync = "async"
	DispatchSync  = "sync"

	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// AppConfig holds the HTTP server settings of the context service.
type AppConfig struct {
	Port string `yaml:"port"`
	// PublicBaseURL is the externally reachable address used to build context URLs.
	PublicBaseURL string `yaml:"public_base_url"`
	LogLevel      string `yaml:"log_level"`
}

// StoreConfig selects and configures the context store backend.
type StoreConfig struct {
	Backend       string        `yaml:"backend"`     // memory | postgres | redis
	MaxEntries    int           `yaml:"max_entries"` // memory only, 0 = unlimited
	DatabaseURL   string        `yaml:"database_url"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisTTL      time.Duration `yaml:"redis_ttl"` // 0 = keep forever
}

// DispatchConfig controls webhook fan-out.
type DispatchConfig struct {
	Mode            string        `yaml:"mode"` // async | sync
	Concurrency     int           `yaml:"concurrency"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
}

// KafkaConfig enables the notification mirror topic. Empty brokers disable it.
type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	Topic         string   `yaml:"topic"`
	ConsumerGroup string   `yaml:"consumer_group"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

// TracingConfig enables OTLP trace export. Empty endpoint disables it.
// ServiceName names the relay; the agent reports as Agent.ServiceName.
type TracingConfig struct {
	Endpoint       string  `yaml:"endpoint"`
	ServiceName    string  `yaml:"service_name"`
	ServiceVersion string  `yaml:"service_version"`
	Environment    string  `yaml:"environment"`
	InstanceID     string  `yaml:"instance_id"`
	Insecure       bool    `yaml:"insecure"`
	SampleRatio    float64 `yaml:"sample_ratio"`
}

// ForService returns the exporter settings for the named service.
func (t TracingConfig) ForService(name string) *tracing.Config {
	return &tracing.Config{
		ServiceName:          name,
		ServiceVersion:       t.ServiceVersion,
		Environment:          t.Environment,
		InstanceID:           t.InstanceID,
		OTLPExporterEndpoint: t.Endpoint,
		OTLPExporterInsecure: t.Insecure,
		SamplingRatio:        t.SampleRatio,
	}
}

// AgentConfig holds the receiving agent settings.
type AgentConfig struct {
	Port         string        `yaml:"port"`
	WebhookURL   string        `yaml:"webhook_url"`
	ServiceURL   string        `yaml:"service_url"`
	AutoFetch    bool          `yaml:"auto_fetch"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	ServiceName  string        `yaml:"service_name"`
}

type Config struct {
	App      AppConfig      `yaml:"app"`
	Store    StoreConfig    `yaml:"store"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Agent    AgentConfig    `yaml:"agent"`
}

func defaults() Config {
	return Config{
		App: AppConfig{
			Port:          "8080",
			PublicBaseURL: "http://localhost:8080",
			LogLevel:      "info",
		},
		Store: StoreConfig{
			Backend:   BackendMemory,
			RedisAddr: "localhost:6379",
		},
		Dispatch: DispatchConfig{
			Mode:            DispatchAsync,
			Concurrency:     16,
			DeliveryTimeout: 5 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic:         "context-notifications",
			ConsumerGroup: "ctxagent",
		},
		Tracing: TracingConfig{
			ServiceName:    "ctxrelay",
			ServiceVersion: "1.0.0",
			Environment:    "development",
			Insecure:       true,
			SampleRatio:    1.0,
		},
		Agent: AgentConfig{
			Port:         "8090",
			WebhookURL:   "http://localhost:8090/webhook",
			ServiceURL:   "http://localhost:8080",
			AutoFetch:    true,
			FetchTimeout: 10 * time.Second,
			ServiceName:  "ctxagent",
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables (a .env file is loaded first if present).
// Environment variables win over the file.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(&cfg)
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.App.Port = getEnv("PORT", cfg.App.Port)
	cfg.App.PublicBaseURL = getEnv("PUBLIC_BASE_URL", cfg.App.PublicBaseURL)
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)

	cfg.Store.Backend = strings.ToLower(getEnv("STORE_BACKEND", cfg.Store.Backend))
	cfg.Store.MaxEntries = getEnvInt("STORE_MAX_ENTRIES", cfg.Store.MaxEntries)
	cfg.Store.DatabaseURL = getEnv("DATABASE_URL", cfg.Store.DatabaseURL)
	cfg.Store.RedisAddr = getEnv("REDIS_ADDR", cfg.Store.RedisAddr)
	cfg.Store.RedisPassword = getEnv("REDIS_PASSWORD", cfg.Store.RedisPassword)
	cfg.Store.RedisDB = getEnvInt("REDIS_DB", cfg.Store.RedisDB)
	cfg.Store.RedisTTL = getEnvDuration("REDIS_TTL", cfg.Store.RedisTTL)

	cfg.Dispatch.Mode = strings.ToLower(getEnv("DISPATCH_MODE", cfg.Dispatch.Mode))
	cfg.Dispatch.Concurrency = getEnvInt("DISPATCH_CONCURRENCY", cfg.Dispatch.Concurrency)
	cfg.Dispatch.DeliveryTimeout = getEnvDuration("DELIVERY_TIMEOUT", cfg.Dispatch.DeliveryTimeout)

	cfg.Kafka.Brokers = getEnvList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.Topic = getEnv("KAFKA_NOTIF_TOPIC", cfg.Kafka.Topic)
	cfg.Kafka.ConsumerGroup = getEnv("KAFKA_CONSUMER_GROUP", cfg.Kafka.ConsumerGroup)

	cfg.Tracing.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.ServiceName = getEnv("OTEL_SERVICE_NAME", cfg.Tracing.ServiceName)
	cfg.Tracing.ServiceVersion = getEnv("OTEL_SERVICE_VERSION", cfg.Tracing.ServiceVersion)
	cfg.Tracing.Environment = getEnv("ENVIRONMENT", cfg.Tracing.Environment)
	cfg.Tracing.InstanceID = getEnv("INSTANCE_ID", getEnv("HOSTNAME", cfg.Tracing.InstanceID))
	cfg.Tracing.Insecure = getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Tracing.Insecure)
	cfg.Tracing.SampleRatio = getEnvFloat("OTEL_TRACE_SAMPLE_RATIO", cfg.Tracing.SampleRatio)

	cfg.Agent.Port = getEnv("AGENT_PORT", cfg.Agent.Port)
	cfg.Agent.WebhookURL = getEnv("AGENT_WEBHOOK_URL", cfg.Agent.WebhookURL)
	cfg.Agent.ServiceURL = getEnv("CONTEXT_SERVICE_URL", cfg.Agent.ServiceURL)
	cfg.Agent.AutoFetch = getEnvBool("AGENT_AUTO_FETCH", cfg.Agent.AutoFetch)
	cfg.Agent.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", cfg.Agent.FetchTimeout)
	cfg.Agent.ServiceName = getEnv("AGENT_SERVICE_NAME", cfg.Agent.ServiceName)
}

// Validate checks the settings the context service needs.
func (c *Config) Validate() error {
	if err := validateAbsoluteURL("PublicBaseURL", c.App.PublicBaseURL); err != nil {
		return err
	}
	switch c.Store.Backend {
	case BackendMemory:
		if c.Store.MaxEntries < 0 {
			return &ConfigError{Field: "Store.MaxEntries", Message: "must not be negative"}
		}
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return &ConfigError{Field: "Store.DatabaseURL", Message: "DATABASE_URL is required for the postgres backend"}
		}
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			return &ConfigError{Field: "Store.RedisAddr", Message: "REDIS_ADDR is required for the redis backend"}
		}
	default:
		return &ConfigError{Field: "Store.Backend", Message: fmt.Sprintf("unknown backend %q", c.Store.Backend)}
	}
	if c.Dispatch.Mode != DispatchAsync && c.Dispatch.Mode != DispatchSync {
		return &ConfigError{Field: "Dispatch.Mode", Message: fmt.Sprintf("must be %q or %q", DispatchAsync, DispatchSync)}
	}
	if c.Dispatch.Concurrency <= 0 {
		return &ConfigError{Field: "Dispatch.Concurrency", Message: "must be positive"}
	}
	if c.Dispatch.DeliveryTimeout <= 0 {
		return &ConfigError{Field: "Dispatch.DeliveryTimeout", Message: "must be positive"}
	}
	return c.validateTracing()
}

// ValidateAgent checks the settings the receiving agent needs.
func (c *Config) ValidateAgent() error {
	if err := validateAbsoluteURL("Agent.WebhookURL", c.Agent.WebhookURL); err != nil {
		return err
	}
	if err := validateAbsoluteURL("Agent.ServiceURL", c.Agent.ServiceURL); err != nil {
		return err
	}
	if c.Agent.FetchTimeout <= 0 {
		return &ConfigError{Field: "Agent.FetchTimeout", Message: "must be positive"}
	}
	if c.Agent.ServiceName == "" {
		return &ConfigError{Field: "Agent.ServiceName", Message: "must not be empty"}
	}
	return c.validateTracing()
}

func (c *Config) validateTracing() error {
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return &ConfigError{Field: "Tracing.SampleRatio", Message: "must be between 0 and 1"}
	}
	return nil
}

func validateAbsoluteURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &ConfigError{Field: field, Message: fmt.Sprintf("%q is not an absolute http(s) URL", raw)}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Message)
}
