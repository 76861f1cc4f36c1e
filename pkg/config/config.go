package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the config file read by Load.
const DefaultPath = "config.yaml"

// Config holds all configuration for hodlisma-engine.
// Values come from config.yaml with environment variable overrides.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:""`
	Version  string `yaml:"-"` // Set at load time

	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	LLM      LLMConfig      `yaml:"llm"`
	Audit    AuditConfig    `yaml:"audit"`
	Rollback RollbackConfig `yaml:"rollback"`
	Finance  FinanceConfig  `yaml:"finance"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"hodlisma"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"hodlisma"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig enables cross-instance fan-out of audit entries.
// Redis is optional: an empty host disables it.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Channel  string `yaml:"channel" env:"REDIS_AUDIT_CHANNEL" env-default:"hodlisma:audit"`
}

// Enabled returns true if a Redis host is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// Addr returns host:port, rewritten for Docker when needed.
func (c *RedisConfig) Addr() string {
	return net.JoinHostPort(ResolveHostForDocker(c.Host), strconv.Itoa(c.Port))
}

// LLMConfig configures the OpenAI-compatible chat endpoint.
type LLMConfig struct {
	BaseURL string `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	Model   string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	APIKey  string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
}

// IsAvailable returns true if chat can be served.
func (c *LLMConfig) IsAvailable() bool {
	return c.APIKey != "" || c.BaseURL != ""
}

// AuditConfig controls how audit writes relate to the mutations they describe.
type AuditConfig struct {
	// Transactional runs each mutation and its audit write in one database
	// transaction. Off by default: a failed audit write never fails the mutation.
	Transactional bool `yaml:"transactional" env:"AUDIT_TRANSACTIONAL" env-default:"false"`
}

// RollbackConfig controls rollback conflict handling.
type RollbackConfig struct {
	// RequireUnchanged refuses a restore when the row no longer matches the
	// entry's after-state.
	RequireUnchanged bool `yaml:"require_unchanged" env:"ROLLBACK_REQUIRE_UNCHANGED" env-default:"false"`
}

// FinanceConfig holds display settings for amounts.
type FinanceConfig struct {
	Currency string `yaml:"currency" env:"FINANCE_CURRENCY" env-default:"USD"`
}

// Load reads DefaultPath with environment variable overrides.
func Load(version string) (*Config, error) {
	return LoadFrom(DefaultPath, version)
}

// LoadFrom reads the YAML file at path with environment variable overrides.
// A missing file is not an error; environment and defaults are used instead.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{Version: version}

	var err error
	if _, statErr := os.Stat(path); statErr == nil {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	c.Finance.Currency = strings.ToUpper(strings.TrimSpace(c.Finance.Currency))
	if len(c.Finance.Currency) != 3 {
		return fmt.Errorf("finance.currency must be an ISO 4217 code, got %q", c.Finance.Currency)
	}
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.Redis.Enabled() && c.Redis.Channel == "" {
		return fmt.Errorf("redis.channel is required when redis is enabled")
	}
	return nil
}

// ListenAddr returns the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.BindAddr, c.Port)
}

// IsProduction reports whether logging and responses should be production-grade.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// URL returns a postgres:// connection URL. pgxpool, the LISTEN connection and
// database/sql all accept it.
func (c *DatabaseConfig) URL() string {
	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(ResolveHostForDocker(c.Host), strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

var (
	inDockerOnce sync.Once
	inDocker     bool
)

// ResolveHostForDocker maps loopback hosts to host.docker.internal when the
// process runs in a container, so a database on the host stays reachable.
func ResolveHostForDocker(host string) string {
	inDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		inDocker = err == nil
	})
	if inDocker && (host == "localhost" || host == "127.0.0.1") {
		return "host.docker.internal"
	}
	return host
}
