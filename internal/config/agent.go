package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPathEnv names the environment variable pointing at an optional YAML config file.
const ConfigPathEnv = "FIREKEEPER_CONFIG"

// Defaults used when neither the file nor the environment set a value.
const (
	DefaultPort              = 8080
	DefaultRateLimitRequests = 100
	DefaultRateLimitPeriod   = time.Minute
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultDestination       = "gcs"
)

// DestinationConfig selects and configures the bucket backend.
type DestinationConfig struct {
	Backend string `yaml:"backend,omitempty"`

	GCSCredentialsFile string `yaml:"gcs_credentials_file,omitempty"`
	GCSEndpoint        string `yaml:"gcs_endpoint,omitempty"`

	S3Endpoint        string `yaml:"s3_endpoint,omitempty"`
	S3Region          string `yaml:"s3_region,omitempty"`
	S3AccessKeyID     string `yaml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key,omitempty"`
	S3UseSSL          bool   `yaml:"s3_use_ssl,omitempty"`
}

// RateLimitConfig bounds requests per client IP. Requests of 0 disables limiting.
type RateLimitConfig struct {
	Requests int           `yaml:"requests,omitempty"`
	Period   time.Duration `yaml:"period,omitempty"`
	RedisURL string        `yaml:"redis_url,omitempty"`
}

// AgentConfig holds the agent's configuration.
type AgentConfig struct {
	Environment       Environment       `yaml:"environment,omitempty"`
	Port              int               `yaml:"port,omitempty"`
	ControllerURL     string            `yaml:"controller_url,omitempty"`
	ControllerToken   string            `yaml:"controller_token,omitempty"`
	AdminPassword     string            `yaml:"admin_password,omitempty"`
	AdminPasswordHash string            `yaml:"admin_password_hash,omitempty"`
	AllowedBuckets    []string          `yaml:"allowed_buckets,omitempty"`
	TempDir           string            `yaml:"temp_dir,omitempty"`
	Destination       DestinationConfig `yaml:"destination,omitempty"`
	RateLimit         RateLimitConfig   `yaml:"rate_limit,omitempty"`
	Proxy             ProxyConfig       `yaml:"proxy,omitempty"`
	ShutdownTimeout   time.Duration     `yaml:"shutdown_timeout,omitempty"`
	LogLevel          string            `yaml:"log_level,omitempty"`
}

// Validate checks that the configuration has required fields for operation.
func (c *AgentConfig) Validate() error {
	if c.ControllerToken == "" {
		return errors.New("controller_token is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.Port)
	}
	switch strings.ToLower(c.Destination.Backend) {
	case "", "gcs":
	case "s3":
		if c.Destination.S3AccessKeyID == "" || c.Destination.S3SecretAccessKey == "" {
			return errors.New("s3 destination requires s3_access_key_id and s3_secret_access_key")
		}
	default:
		return fmt.Errorf("unsupported destination backend %q", c.Destination.Backend)
	}
	if c.RateLimit.Requests < 0 {
		return errors.New("rate_limit.requests must not be negative")
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Period <= 0 {
		return errors.New("rate_limit.period must be positive")
	}
	return nil
}

// IsConfigured returns true if the agent knows where its controller lives.
func (c *AgentConfig) IsConfigured() bool {
	return c.ControllerURL != "" && c.ControllerToken != ""
}

// HasAdminCredential returns true if destructive storage routes can be unlocked.
func (c *AgentConfig) HasAdminCredential() bool {
	return c.AdminPassword != "" || c.AdminPasswordHash != ""
}

// GetProxyConfig returns the proxy settings, or nil when none are set.
func (c *AgentConfig) GetProxyConfig() *ProxyConfig {
	if !c.Proxy.HasProxy() {
		return nil
	}
	p := c.Proxy
	return &p
}

// DefaultAgentConfig returns a configuration holding only defaults.
func DefaultAgentConfig() *AgentConfig {
	return &AgentConfig{
		Environment:     EnvDevelopment,
		Port:            DefaultPort,
		TempDir:         filepath.Join(os.TempDir(), "firekeeper"),
		Destination:     DestinationConfig{Backend: DefaultDestination},
		RateLimit:       RateLimitConfig{Requests: DefaultRateLimitRequests, Period: DefaultRateLimitPeriod},
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// Load reads the configuration from the given path.
// If the file does not exist, an empty config is returned.
func Load(path string) (*AgentConfig, error) {
	cfg := &AgentConfig{}
	if err := loadInto(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadInto(path string, cfg *AgentConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// LoadAgentConfig starts from defaults, overlays the optional YAML file named by
// FIREKEEPER_CONFIG and then any environment variables that are set.
func LoadAgentConfig() (*AgentConfig, error) {
	cfg := DefaultAgentConfig()
	if path := os.Getenv(ConfigPathEnv); path != "" {
		if err := loadInto(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv()
	cfg.normalize()
	return cfg, nil
}

// ApplyEnv overrides file values with any environment variables that are set.
func (c *AgentConfig) ApplyEnv() {
	if env := os.Getenv("ENV"); env != "" {
		c.Environment = ParseEnvironment(env)
	}
	c.Port = getEnvInt("PORT", c.Port)
	c.ControllerURL = strings.TrimRight(getEnv("CONTROLLER_URL", c.ControllerURL), "/")
	c.ControllerToken = getEnv("CONTROLLER_TOKEN", c.ControllerToken)
	c.AdminPassword = getEnv("ADMIN_PASSWORD", c.AdminPassword)
	c.AdminPasswordHash = getEnv("ADMIN_PASSWORD_HASH", c.AdminPasswordHash)
	c.AllowedBuckets = getEnvList("ALLOWED_BUCKETS", c.AllowedBuckets)
	c.TempDir = getEnv("TEMP_DIR", c.TempDir)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)

	d := &c.Destination
	d.Backend = getEnv("DESTINATION_BACKEND", d.Backend)
	d.GCSCredentialsFile = getEnv("GCS_CREDENTIALS_FILE", d.GCSCredentialsFile)
	d.GCSEndpoint = getEnv("GCS_ENDPOINT", d.GCSEndpoint)
	d.S3Endpoint = getEnv("S3_ENDPOINT", d.S3Endpoint)
	d.S3Region = getEnv("S3_REGION", d.S3Region)
	d.S3AccessKeyID = getEnv("S3_ACCESS_KEY_ID", d.S3AccessKeyID)
	d.S3SecretAccessKey = getEnv("S3_SECRET_ACCESS_KEY", d.S3SecretAccessKey)
	d.S3UseSSL = getEnvBool("S3_USE_SSL", d.S3UseSSL)

	c.RateLimit.Requests = getEnvInt("RATE_LIMIT_REQUESTS", c.RateLimit.Requests)
	c.RateLimit.Period = getEnvDuration("RATE_LIMIT_PERIOD", c.RateLimit.Period)
	c.RateLimit.RedisURL = getEnv("REDIS_URL", c.RateLimit.RedisURL)

	c.Proxy.applyEnv()
}

func (c *AgentConfig) normalize() {
	c.Environment = ParseEnvironment(string(c.Environment))
	c.Destination.Backend = strings.ToLower(c.Destination.Backend)
	if c.Destination.Backend == "" {
		c.Destination.Backend = DefaultDestination
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}
