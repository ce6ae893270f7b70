package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Name string `yaml:"name"`
	Port string `yaml:"port"`
	// ProductListDelay injects an artificial latency into the product list
	// path to make the cache benefit visible. Zero disables it.
	ProductListDelay time.Duration `yaml:"product_list_delay"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MigrationsDir   string        `yaml:"migrations_dir"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type CacheConfig struct {
	ListTTL time.Duration `yaml:"list_ttl"`
}

type ScopeLimit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type ThrottleConfig struct {
	Scopes map[string]ScopeLimit `yaml:"scopes"`
}

type Config struct {
	App      AppConfig      `yaml:"app"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Cache    CacheConfig    `yaml:"cache"`
	Throttle ThrottleConfig `yaml:"throttle"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to open %s: %w", path, err)
	}
	defer file.Close()

	var cfg Config
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: invalid config file %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("config: auth.jwt_secret is required")
	}

	return &cfg, nil
}

// applyEnv lets deployment environments override the file without editing it.
func (c *Config) applyEnv() {
	c.App.Port = getenv("APP_PORT", c.App.Port)
	c.Postgres.Host = getenv("DB_HOST", c.Postgres.Host)
	c.Postgres.Port = getenv("DB_PORT", c.Postgres.Port)
	c.Postgres.User = getenv("DB_USER", c.Postgres.User)
	c.Postgres.Password = getenv("DB_PASSWORD", c.Postgres.Password)
	c.Postgres.DBName = getenv("DB_NAME", c.Postgres.DBName)
	c.Postgres.SSLMode = getenv("DB_SSLMODE", c.Postgres.SSLMode)
	c.Redis.Addr = getenv("REDIS_ADDR", c.Redis.Addr)
	c.Auth.JWTSecret = getenv("JWT_SECRET", c.Auth.JWTSecret)
}

func (c *Config) applyDefaults() {
	if c.App.Port == "" {
		c.App.Port = "8080"
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.Postgres.MaxConns == 0 {
		c.Postgres.MaxConns = 10
	}
	if c.Postgres.MinConns == 0 {
		c.Postgres.MinConns = 2
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 30 * time.Minute
	}
	if c.Cache.ListTTL == 0 {
		c.Cache.ListTTL = 15 * time.Minute
	}
	if c.Throttle.Scopes == nil {
		c.Throttle.Scopes = map[string]ScopeLimit{
			"products": {Requests: 100, Window: time.Minute},
			"orders":   {Requests: 60, Window: time.Minute},
		}
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
