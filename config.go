package main

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

type config struct {
	TasksAPIBase    string        `yaml:"tasks_api_base"`
	TasksAPIToken   string        `yaml:"tasks_api_token"`
	TasksAPITimeout time.Duration `yaml:"tasks_api_timeout"`

	RedisConnectionString string        `yaml:"redis_connection_string"`
	TasksCacheTTL         time.Duration `yaml:"tasks_cache_ttl"`
	SessionIdleTTL        time.Duration `yaml:"session_idle_ttl"`

	Auth0Domain   string `yaml:"auth0_domain"`
	Auth0Audience string `yaml:"auth0_audience"`
	AuthTestMode  bool   `yaml:"auth0_test_mode"`
	TestJWTSecret string `yaml:"test_jwt_secret"`

	Port  string `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

func defaultConfig() config {
	return config{
		TasksAPITimeout: 10 * time.Second,
		TasksCacheTTL:   30 * time.Second,
		SessionIdleTTL:  30 * time.Minute,
		Port:            "8080",
	}
}

// loadConfig reads the optional YAML file named by CONFIG_FILE and then
// applies environment variables over it.
func loadConfig(getenv func(string) string) (config, error) {
	cfg := defaultConfig()
	if path := getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	setString(getenv, "TASKS_API_BASE", &cfg.TasksAPIBase)
	setString(getenv, "TASKS_API_TOKEN", &cfg.TasksAPIToken)
	setString(getenv, "REDIS_CONNECTION_STRING", &cfg.RedisConnectionString)
	setString(getenv, "AUTH0_DOMAIN", &cfg.Auth0Domain)
	setString(getenv, "AUTH0_AUDIENCE", &cfg.Auth0Audience)
	setString(getenv, "TEST_JWT_SECRET", &cfg.TestJWTSecret)
	setString(getenv, "PORT", &cfg.Port)
	if v := getenv("AUTH0_TEST_MODE"); v != "" {
		cfg.AuthTestMode = v == "1"
	}
	if v := getenv("DEBUG"); v != "" {
		dbg, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid DEBUG: %w", err)
		}
		cfg.Debug = dbg
	}
	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"TASKS_API_TIMEOUT", &cfg.TasksAPITimeout},
		{"TASKS_CACHE_TTL", &cfg.TasksCacheTTL},
		{"SESSION_IDLE_TTL", &cfg.SessionIdleTTL},
	} {
		if err := setDuration(getenv, d.key, d.dst); err != nil {
			return cfg, err
		}
	}

	return cfg, cfg.validate()
}

func (c config) validate() error {
	if c.TasksAPIBase == "" {
		return errors.New("missing TASKS_API_BASE")
	}
	if c.TasksAPITimeout <= 0 {
		return errors.New("invalid TASKS_API_TIMEOUT: must be greater than zero")
	}
	if c.TasksCacheTTL < 0 || c.SessionIdleTTL < 0 {
		return errors.New("invalid TTL: must not be negative")
	}
	if c.AuthTestMode {
		if c.TestJWTSecret == "" {
			return errors.New("TEST_JWT_SECRET must be set when AUTH0_TEST_MODE=1")
		}
	} else if c.Auth0Domain == "" || c.Auth0Audience == "" {
		return errors.New("missing Auth0 config")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}
	return nil
}

func setString(getenv func(string) string, key string, dst *string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(getenv func(string) string, key string, dst *time.Duration) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

// redisOptions accepts a redis:// URL or the Azure-style
// "host:port,password=...,ssl=true" connection string.
func redisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
