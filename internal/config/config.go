// Package config loads and validates plugin configuration from YAML or TOML
// files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BILLMGR_ADDON_"

// Config is the root plugin configuration.
type Config struct {
	Plugin        PluginConfig        `yaml:"plugin" toml:"plugin"`
	Server        ServerConfig        `yaml:"server" toml:"server"`
	Paths         PathsConfig         `yaml:"paths" toml:"paths"`
	Database      DatabaseConfig      `yaml:"database" toml:"database"`
	Cache         CacheConfig         `yaml:"cache" toml:"cache"`
	I18n          I18nConfig          `yaml:"i18n" toml:"i18n"`
	Presets       PresetsConfig       `yaml:"presets" toml:"presets"`
	Observability ObservabilityConfig `yaml:"observability" toml:"observability"`
	Settings      map[string]string   `yaml:"settings" toml:"settings"`
}

// PluginConfig names the plugin.
type PluginConfig struct {
	Name        string `yaml:"name" toml:"name"`
	LandingPage string `yaml:"landing_page" toml:"landing_page"`
}

// ServerConfig describes service-mode HTTP settings.
type ServerConfig struct {
	Host            string        `yaml:"host" toml:"host"`
	Port            int           `yaml:"port" toml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout" toml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PathsConfig locates plugin files.
type PathsConfig struct {
	Public  string `yaml:"public" toml:"public"`
	Logs    string `yaml:"logs" toml:"logs"`
	Locales string `yaml:"locales" toml:"locales"`
}

// DatabaseConfig describes the panel MySQL database. An empty Host disables
// identity lookup.
type DatabaseConfig struct {
	Host            string        `yaml:"host" toml:"host"`
	Port            int           `yaml:"port" toml:"port"`
	User            string        `yaml:"user" toml:"user"`
	Password        string        `yaml:"password" toml:"password"`
	Name            string        `yaml:"name" toml:"name"`
	MaxOpenConns    int           `yaml:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" toml:"conn_max_lifetime"`
	SessionCacheTTL time.Duration `yaml:"session_cache_ttl" toml:"session_cache_ttl"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// CacheConfig selects the option-preset cache.
type CacheConfig struct {
	Backend   string        `yaml:"backend" toml:"backend"`
	RedisAddr string        `yaml:"redis_addr" toml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db" toml:"redis_db"`
	PresetTTL time.Duration `yaml:"preset_ttl" toml:"preset_ttl"`
}

// I18nConfig describes the message catalog.
type I18nConfig struct {
	DefaultLocale string `yaml:"default_locale" toml:"default_locale"`
}

// PresetsConfig bounds option resolution.
type PresetsConfig struct {
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel  string        `yaml:"log_level" toml:"log_level"`
	LogFormat string        `yaml:"log_format" toml:"log_format"`
	LogFile   string        `yaml:"log_file" toml:"log_file"`
	Tracing   TracingConfig `yaml:"tracing" toml:"tracing"`
	Metrics   MetricsConfig `yaml:"metrics" toml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" toml:"enabled"`
	Exporter     string  `yaml:"exporter" toml:"exporter"`
	Endpoint     string  `yaml:"endpoint" toml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate" toml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			HandlerTimeout:  55 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Paths: PathsConfig{
			Public:  "public",
			Locales: "locales",
		},
		Database: DatabaseConfig{
			Port:            3306,
			Name:            "billmgr",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			SessionCacheTTL: 30 * time.Second,
		},
		Cache: CacheConfig{
			Backend:   "memory",
			PresetTTL: 5 * time.Minute,
		},
		I18n: I18nConfig{
			DefaultLocale: "en",
		},
		Presets: PresetsConfig{
			Timeout: 30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML or TOML config file, chosen by extension, applies
// environment overrides, and validates the result. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	return LoadOver(Defaults(), path)
}

// LoadOver is Load starting from base instead of Defaults. base is modified.
func LoadOver(base *Config, path string) (*Config, error) {
	cfg := base

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			err = toml.Unmarshal(data, cfg)
		case ".yaml", ".yml", "":
			err = yaml.Unmarshal(data, cfg)
		default:
			return nil, fmt.Errorf("config: unsupported file type %q", filepath.Ext(path))
		}
		if err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Plugin.Name == "" {
		errs = append(errs, "plugin.name is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Presets.Timeout <= 0 {
		errs = append(errs, "presets.timeout must be positive")
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, "cache.redis_addr is required for the redis backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.backend %q must be memory or redis", c.Cache.Backend))
	}
	switch c.Observability.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("observability.log_format %q must be json or console", c.Observability.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads BILLMGR_ADDON_* environment variables and
// overrides config values. Only the most commonly overridden fields are
// supported.
func applyEnvOverrides(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	str("PLUGIN_NAME", &cfg.Plugin.Name)
	str("SERVER_HOST", &cfg.Server.Host)
	num("SERVER_PORT", &cfg.Server.Port)
	str("DATABASE_HOST", &cfg.Database.Host)
	num("DATABASE_PORT", &cfg.Database.Port)
	str("DATABASE_USER", &cfg.Database.User)
	str("DATABASE_PASSWORD", &cfg.Database.Password)
	str("DATABASE_NAME", &cfg.Database.Name)
	str("CACHE_BACKEND", &cfg.Cache.Backend)
	str("CACHE_REDIS_ADDR", &cfg.Cache.RedisAddr)
	dur("PRESETS_TIMEOUT", &cfg.Presets.Timeout)
	str("OBSERVABILITY_LOG_LEVEL", &cfg.Observability.LogLevel)
	str("OBSERVABILITY_LOG_FILE", &cfg.Observability.LogFile)
}
