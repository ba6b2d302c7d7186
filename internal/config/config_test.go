package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"CONFIG_FILE", "PORT", "PUBLIC_BASE_URL", "LOG_LEVEL", "STORE_BACKEND", "STORE_MAX_ENTRIES",
	"DATABASE_URL", "REDIS_ADDR", "REDIS_TTL", "DISPATCH_MODE", "DISPATCH_CONCURRENCY",
	"DELIVERY_TIMEOUT", "KAFKA_BROKERS", "KAFKA_NOTIF_TOPIC", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"AGENT_WEBHOOK_URL", "CONTEXT_SERVICE_URL", "AGENT_AUTO_FETCH", "FETCH_TIMEOUT",
	"AGENT_SERVICE_NAME", "OTEL_SERVICE_NAME", "OTEL_SERVICE_VERSION", "ENVIRONMENT",
	"INSTANCE_ID", "HOSTNAME", "OTEL_EXPORTER_OTLP_INSECURE", "OTEL_TRACE_SAMPLE_RATIO",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.ValidateAgent())

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "http://localhost:8080", cfg.App.PublicBaseURL)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, DispatchAsync, cfg.Dispatch.Mode)
	assert.Equal(t, 5*time.Second, cfg.Dispatch.DeliveryTimeout)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Empty(t, cfg.Tracing.Endpoint)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PUBLIC_BASE_URL", "https://ctx.example.com/")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_TTL", "1h")
	t.Setenv("DISPATCH_MODE", "SYNC")
	t.Setenv("DISPATCH_CONCURRENCY", "4")
	t.Setenv("DELIVERY_TIMEOUT", "750ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("AGENT_AUTO_FETCH", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://ctx.example.com/", cfg.App.PublicBaseURL)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, time.Hour, cfg.Store.RedisTTL)
	assert.Equal(t, DispatchSync, cfg.Dispatch.Mode)
	assert.Equal(t, 4, cfg.Dispatch.Concurrency)
	assert.Equal(t, 750*time.Millisecond, cfg.Dispatch.DeliveryTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.Agent.AutoFetch)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "ctxrelay.yaml")
	content := `
app:
  public_base_url: https://file.example.com
  port: "9000"
store:
  backend: postgres
  database_url: postgres://u:p@db/ctx
dispatch:
  mode: sync
  delivery_timeout: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://file.example.com", cfg.App.PublicBaseURL)
	assert.Equal(t, "9100", cfg.App.Port)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, 2*time.Second, cfg.Dispatch.DeliveryTimeout)
	assert.Equal(t, 16, cfg.Dispatch.Concurrency)
}

func TestLoadConfigMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{name: "relative base url", mutate: func(c *Config) { c.App.PublicBaseURL = "/context" }, field: "PublicBaseURL"},
		{name: "ftp base url", mutate: func(c *Config) { c.App.PublicBaseURL = "ftp://host" }, field: "PublicBaseURL"},
		{name: "unknown backend", mutate: func(c *Config) { c.Store.Backend = "etcd" }, field: "Store.Backend"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Store.Backend = BackendPostgres }, field: "Store.DatabaseURL"},
		{name: "negative cap", mutate: func(c *Config) { c.Store.MaxEntries = -1 }, field: "Store.MaxEntries"},
		{name: "bad mode", mutate: func(c *Config) { c.Dispatch.Mode = "later" }, field: "Dispatch.Mode"},
		{name: "zero concurrency", mutate: func(c *Config) { c.Dispatch.Concurrency = 0 }, field: "Dispatch.Concurrency"},
		{name: "zero timeout", mutate: func(c *Config) { c.Dispatch.DeliveryTimeout = 0 }, field: "Dispatch.DeliveryTimeout"},
		{name: "sample ratio", mutate: func(c *Config) { c.Tracing.SampleRatio = 1.5 }, field: "Tracing.SampleRatio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestValidateAgent(t *testing.T) {
	cfg := defaults()
	cfg.Agent.WebhookURL = "not-a-url"
	var cfgErr *ConfigError
	require.ErrorAs(t, cfg.ValidateAgent(), &cfgErr)
	assert.Equal(t, "Agent.WebhookURL", cfgErr.Field)
}

func TestLoadConfigTracing(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "ctxagent.yaml")
	content := `
tracing:
  endpoint: collector:4317
  environment: staging
agent:
  service_name: edge-agent
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("OTEL_SERVICE_NAME", "relay-eu")
	t.Setenv("OTEL_TRACE_SAMPLE_RATIO", "0.25")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "false")
	t.Setenv("HOSTNAME", "pod-7")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateAgent())

	agent := cfg.Tracing.ForService(cfg.Agent.ServiceName)
	assert.Equal(t, "edge-agent", agent.ServiceName, "file value must survive OTEL_SERVICE_NAME")
	assert.Equal(t, "collector:4317", agent.OTLPExporterEndpoint)
	assert.Equal(t, "staging", agent.Environment)
	assert.Equal(t, "1.0.0", agent.ServiceVersion)
	assert.Equal(t, "pod-7", agent.InstanceID)
	assert.False(t, agent.OTLPExporterInsecure)
	assert.Equal(t, 0.25, agent.SamplingRatio)
	assert.True(t, agent.Enabled())
	assert.NoError(t, agent.Validate())

	assert.Equal(t, "relay-eu", cfg.Tracing.ForService(cfg.Tracing.ServiceName).ServiceName)
}

func TestAgentServiceNameDefault(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "ctxagent", cfg.Agent.ServiceName)
	assert.Equal(t, "ctxrelay", cfg.Tracing.ServiceName)
	assert.True(t, cfg.Tracing.Insecure)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
}
