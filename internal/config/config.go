// Package config loads service configuration from an optional YAML file
// with environment-variable overrides. Environment always wins, so a
// deployment can ship a checked-in YAML baseline and inject secrets via env.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		IdleTimeout     time.Duration `yaml:"idle_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		CORSOrigin      string        `yaml:"cors_origin"`
	} `yaml:"server"`

	Storage struct {
		DSN             string        `yaml:"dsn"`
		MaxOpenConns    int           `yaml:"max_open_conns"`
		MaxIdleConns    int           `yaml:"max_idle_conns"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	} `yaml:"storage"`

	Sessions struct {
		// memory | redis
		Kind      string `yaml:"kind"`
		RedisAddr string `yaml:"redis_addr"`
		RedisDB   int    `yaml:"redis_db"`
	} `yaml:"sessions"`

	Auth struct {
		UserSecret  string        `yaml:"user_secret"`
		AdminSecret string        `yaml:"admin_secret"`
		Issuer      string        `yaml:"issuer"`
		AccessTTL   time.Duration `yaml:"access_ttl"`
		RefreshTTL  time.Duration `yaml:"refresh_ttl"`
		BcryptCost  int           `yaml:"bcrypt_cost"`
	} `yaml:"auth"`

	Rate struct {
		RequestsPerMinute int `yaml:"requests_per_minute"`
		// Tighter bucket applied to login/register/refresh.
		CredentialPerMinute int `yaml:"credential_per_minute"`
	} `yaml:"rate"`
}

// Load reads the YAML file at path when it exists, applies env overrides and
// defaults, and validates the result. An empty path skips the file entirely.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	c.applyEnv()
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Addr, "HASHVEST_ADDR")
	setString(&c.Server.CORSOrigin, "HASHVEST_CORS_ORIGIN")
	setString(&c.Storage.DSN, "HASHVEST_PG_DSN")
	setString(&c.Sessions.Kind, "HASHVEST_SESSIONS")
	setString(&c.Sessions.RedisAddr, "HASHVEST_REDIS_ADDR")
	setInt(&c.Sessions.RedisDB, "HASHVEST_REDIS_DB")
	setString(&c.Auth.UserSecret, "HASHVEST_USER_SECRET")
	setString(&c.Auth.AdminSecret, "HASHVEST_ADMIN_SECRET")
	setString(&c.Auth.Issuer, "HASHVEST_ISSUER")
	setDuration(&c.Auth.AccessTTL, "HASHVEST_ACCESS_TTL")
	setDuration(&c.Auth.RefreshTTL, "HASHVEST_REFRESH_TTL")
	setInt(&c.Auth.BcryptCost, "HASHVEST_BCRYPT_COST")
	setInt(&c.Rate.RequestsPerMinute, "HASHVEST_RATE_RPM")
	setInt(&c.Rate.CredentialPerMinute, "HASHVEST_RATE_CREDENTIAL_RPM")
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Storage.MaxOpenConns == 0 {
		c.Storage.MaxOpenConns = 10
	}
	if c.Storage.MaxIdleConns == 0 {
		c.Storage.MaxIdleConns = 10
	}
	if c.Storage.ConnMaxLifetime == 0 {
		c.Storage.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Sessions.Kind == "" {
		c.Sessions.Kind = "memory"
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "hashvest"
	}
	if c.Auth.AccessTTL == 0 {
		c.Auth.AccessTTL = time.Hour
	}
	if c.Auth.RefreshTTL == 0 {
		c.Auth.RefreshTTL = 7 * 24 * time.Hour
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 10
	}
	if c.Rate.RequestsPerMinute == 0 {
		c.Rate.RequestsPerMinute = 120
	}
	if c.Rate.CredentialPerMinute == 0 {
		c.Rate.CredentialPerMinute = 10
	}
}

func (c *Config) validate() error {
	if c.Auth.UserSecret == "" || c.Auth.AdminSecret == "" {
		return errors.New("config: auth.user_secret and auth.admin_secret are required")
	}
	if c.Auth.UserSecret == c.Auth.AdminSecret {
		return errors.New("config: user and admin secrets must differ")
	}
	switch c.Sessions.Kind {
	case "memory":
	case "redis":
		if c.Sessions.RedisAddr == "" {
			return errors.New("config: sessions.redis_addr is required for redis sessions")
		}
	default:
		return fmt.Errorf("config: unknown sessions.kind %q", c.Sessions.Kind)
	}
	if c.Auth.AccessTTL >= c.Auth.RefreshTTL {
		return errors.New("config: access_ttl must be shorter than refresh_ttl")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
