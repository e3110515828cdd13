package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the authgraph server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	IdP      IdPConfig
	Events   EventsConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type RedisConfig struct {
	URL string
}

// CacheConfig sets entry lifetimes. Stale reads are bounded by these TTLs.
type CacheConfig struct {
	UserRolesTTL time.Duration
	ConfigTTL    time.Duration
}

// IdPConfig points at the Keycloak admin API. An empty BaseURL disables
// identity-provider calls.
type IdPConfig struct {
	BaseURL      string
	Realm        string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

func (c IdPConfig) Enabled() bool {
	return c.BaseURL != ""
}

type EventsConfig struct {
	Channel string
}

// Load reads configuration from environment variables and returns a validated Config.
// A .env file in the working directory, if present, seeds variables that are not already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("AUTHGRAPH_PORT", 8080),
			Env:  envString("AUTHGRAPH_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   envString("DATABASE_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Cache: CacheConfig{
			UserRolesTTL: envDurationSecs("CACHE_USER_ROLES_TTL_SECS", 300*time.Second),
			ConfigTTL:    envDurationSecs("CACHE_CONFIG_TTL_SECS", 600*time.Second),
		},
		IdP: IdPConfig{
			BaseURL:      strings.TrimRight(os.Getenv("KEYCLOAK_URL"), "/"),
			Realm:        envString("KEYCLOAK_REALM", "authgraph"),
			ClientID:     envString("KEYCLOAK_ADMIN_CLIENT_ID", "admin-cli"),
			ClientSecret: os.Getenv("KEYCLOAK_ADMIN_CLIENT_SECRET"),
			Timeout:      envDuration("KEYCLOAK_TIMEOUT", 10*time.Second),
		},
		Events: EventsConfig{
			Channel: envString("EVENTS_CHANNEL", "authgraph:events"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Cache.UserRolesTTL <= 0 || c.Cache.ConfigTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}

	if c.IdP.Enabled() {
		if !strings.HasPrefix(c.IdP.BaseURL, "http://") && !strings.HasPrefix(c.IdP.BaseURL, "https://") {
			return fmt.Errorf("KEYCLOAK_URL must start with http:// or https://, got %q", c.IdP.BaseURL)
		}
		if c.IdP.ClientSecret == "" {
			return fmt.Errorf("KEYCLOAK_ADMIN_CLIENT_SECRET is required when KEYCLOAK_URL is set")
		}
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
