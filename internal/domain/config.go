package domain

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete Heron configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" yaml:"server"`

	// Tier determines which backends are used
	Tier Tier `json:"tier" yaml:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository" yaml:"repository"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	EventBus   EventBusConfig   `json:"eventBus" yaml:"eventBus"`
	Credit     CreditConfig     `json:"credit" yaml:"credit"`
	Worker     WorkerConfig     `json:"worker" yaml:"worker"`

	// Observability
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	ReadTimeout  int    `json:"readTimeout" yaml:"readTimeout"`   // seconds
	WriteTimeout int    `json:"writeTimeout" yaml:"writeTimeout"` // seconds

	// BatchLimit caps the number of applications in one batch request
	BatchLimit int `json:"batchLimit" yaml:"batchLimit"`

	// VelocityWindow is the look-back for recent applications, in seconds
	VelocityWindow int `json:"velocityWindow" yaml:"velocityWindow"`
}

// WorkerConfig holds async worker settings.
type WorkerConfig struct {
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	TenantIDs   []string `json:"tenantIds" yaml:"tenantIds"`
	Concurrency int      `json:"concurrency" yaml:"concurrency"`
}

// CreditConfig holds credit bureau adapter settings.
type CreditConfig struct {
	DefaultProvider string                 `json:"defaultProvider" yaml:"defaultProvider"`
	Providers       []CreditProviderConfig `json:"providers" yaml:"providers"`
	CacheTTL        time.Duration          `json:"cacheTtl" yaml:"cacheTtl"`
	QuotaWindow     time.Duration          `json:"quotaWindow" yaml:"quotaWindow"`

	// FallbackToMock returns simulated reports when a provider fails
	FallbackToMock bool `json:"fallbackToMock" yaml:"fallbackToMock"`
}

// CreditProviderConfig describes one bureau HTTP provider.
type CreditProviderConfig struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	BaseURL        string `json:"baseUrl" yaml:"baseUrl"`
	APIKey         string `json:"-" yaml:"apiKey"`
	Secret         string `json:"-" yaml:"secret"` // request signing, jingdong only
	FreeQuota      int64  `json:"freeQuota" yaml:"freeQuota"`
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName" yaml:"serviceName"`
	Endpoint    string `json:"endpoint" yaml:"endpoint"` // OTLP gRPC collector
}

// MetricsConfig holds Prometheus exporter settings.
type MetricsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity uses SQLite + in-process cache + channels
	TierCommunity Tier = "community"

	// TierPro uses PostgreSQL + Redis + NATS
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30,
			WriteTimeout:   30,
			BatchLimit:     500,
			VelocityWindow: 30 * 24 * 3600,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./heron.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Credit: CreditConfig{
			DefaultProvider: "jingdong",
			Providers:       DefaultCreditProviders(),
			CacheTTL:        24 * time.Hour,
			QuotaWindow:     24 * time.Hour,
			FallbackToMock:  true,
		},
		Worker: WorkerConfig{
			Enabled:     true,
			Concurrency: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "heron",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultCreditProviders returns the bureau providers known to the adapter.
// None is usable until an API key is configured.
func DefaultCreditProviders() []CreditProviderConfig {
	return []CreditProviderConfig{
		{ID: "jingdong", Name: "京东万象", BaseURL: "https://way.jd.com/jisuapi/enterprisecredit", FreeQuota: 1000, TimeoutSeconds: 10},
		{ID: "qichacha", Name: "企查查", BaseURL: "https://api.qichacha.com/ECIV4/GetCreditScore", FreeQuota: 100, TimeoutSeconds: 10},
		{ID: "apispace", Name: "APISpace", BaseURL: "https://eolink.o.apispace.com/credit-rating/query", FreeQuota: 500, TimeoutSeconds: 10},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "heron",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
		NATSQueueGroup:    "heron-workers",
	}
	cfg.Tracing.Enabled = true
	return cfg
}

// LoadConfig builds the configuration for a tier, overlays the YAML file at
// path (if any) and then the HERON_* environment variables.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if Tier(os.Getenv("HERON_TIER")) == TierPro {
		cfg = ProConfig()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from HERON_* variables looked up with getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv("HERON_DEBUG") == "true" {
		c.Logging.Level = "debug"
	}
	if v := getenv("HERON_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: HERON_PORT=%q", ErrInvalidInput, v)
		}
		c.Server.Port = port
	}
	if v := getenv("HERON_SQLITE_PATH"); v != "" {
		c.Repository.SQLitePath = v
	}
	if v := getenv("HERON_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := getenv("HERON_NATS_URL"); v != "" {
		c.EventBus.NATSUrl = v
	}
	if v := getenv("HERON_ASYNC_WORKER"); v != "" {
		c.Worker.Enabled = v == "true"
	}
	if v := getenv("HERON_TENANTS"); v != "" {
		c.Worker.TenantIDs = splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
