// Package config loads service settings from the embedded defaults, an
// optional YAML file, the environment and command-line flags, in that order.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	DocServer DocServerConfig `yaml:"docserver"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Session   SessionConfig   `yaml:"session"`
	Fill      FillConfig      `yaml:"fill"`
	Docx      DocxConfig      `yaml:"docx"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// PublicURL is the base URL the document server uses to reach this
	// service (callbacks, downloads, fill scripts).
	PublicURL       string        `yaml:"public_url"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig selects the template store. An empty URL keeps templates in
// memory.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type DocServerConfig struct {
	URL       string        `yaml:"url"`
	JWTSecret string        `yaml:"jwt_secret"`
	JWTHeader string        `yaml:"jwt_header"`
	Timeout   time.Duration `yaml:"timeout"`
	Lang      string        `yaml:"lang"`
}

// CatalogConfig points at the model definitions, a .cue file or an OpenAPI
// document (.yaml, .yml, .json).
type CatalogConfig struct {
	Path     string `yaml:"path"`
	MaxDepth int    `yaml:"max_depth"`
}

type SessionConfig struct {
	MaxAge      time.Duration `yaml:"max_age"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	ClickBuffer int           `yaml:"click_buffer"`
}

type FillConfig struct {
	TTL         time.Duration `yaml:"ttl"`
	TokenSecret string        `yaml:"token_secret"`
}

// DocxConfig enables template inspection. unioffice reads nothing without a
// metered license key.
type DocxConfig struct {
	LicenseKey string `yaml:"license_key"`
}

// Default returns the embedded defaults.
func Default() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// DefaultYAML returns the embedded default configuration file.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultYAML...)
}

// Load builds the effective configuration. path may be empty. fs may be nil;
// otherwise only flags the user actually set take effect.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if fs != nil {
		if err := cfg.ApplyFlags(fs); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides settings from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	if p, ok := lookup("PORT"); ok && p != "" {
		if _, err := strconv.Atoi(p); err != nil {
			errs = append(errs, fmt.Errorf("PORT: %w", err))
		} else {
			c.Server.Addr = ":" + p
		}
	}
	str("PUBLIC_URL", &c.Server.PublicURL)
	str("LOG_LEVEL", &c.Log.Level)
	str("DATABASE_URL", &c.Database.URL)
	str("DOCSERVER_URL", &c.DocServer.URL)
	str("DOCSERVER_JWT_SECRET", &c.DocServer.JWTSecret)
	str("DOCSERVER_JWT_HEADER", &c.DocServer.JWTHeader)
	dur("DOCSERVER_TIMEOUT", &c.DocServer.Timeout)
	str("CATALOG_PATH", &c.Catalog.Path)
	dur("SESSION_MAX_AGE", &c.Session.MaxAge)
	dur("SESSION_IDLE_TIMEOUT", &c.Session.IdleTimeout)
	dur("FILL_TTL", &c.Fill.TTL)
	str("FILL_TOKEN_SECRET", &c.Fill.TokenSecret)
	str("UNIDOC_LICENSE_API_KEY", &c.Docx.LicenseKey)
	return errors.Join(errs...)
}

// RegisterFlags defines the flags ApplyFlags understands.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("addr", d.Server.Addr, "listen address")
	fs.String("public-url", d.Server.PublicURL, "base URL the document server uses to reach this service")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("database-url", d.Database.URL, "sqlite DSN for templates; empty keeps them in memory")
	fs.String("docserver-url", d.DocServer.URL, "ONLYOFFICE document server URL")
	fs.String("docserver-jwt-secret", d.DocServer.JWTSecret, "document server JWT secret")
	fs.String("catalog", d.Catalog.Path, "model catalog (.cue or OpenAPI document)")
	fs.Int("max-depth", d.Catalog.MaxDepth, "relational hops expanded in field trees")
	fs.Duration("session-idle-timeout", d.Session.IdleTimeout, "close editor sessions idle this long")
}

// ApplyFlags copies every flag the user set onto c.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "addr":
			c.Server.Addr, err = fs.GetString(f.Name)
		case "public-url":
			c.Server.PublicURL, err = fs.GetString(f.Name)
		case "log-level":
			c.Log.Level, err = fs.GetString(f.Name)
		case "database-url":
			c.Database.URL, err = fs.GetString(f.Name)
		case "docserver-url":
			c.DocServer.URL, err = fs.GetString(f.Name)
		case "docserver-jwt-secret":
			c.DocServer.JWTSecret, err = fs.GetString(f.Name)
		case "catalog":
			c.Catalog.Path, err = fs.GetString(f.Name)
		case "max-depth":
			c.Catalog.MaxDepth, err = fs.GetInt(f.Name)
		case "session-idle-timeout":
			c.Session.IdleTimeout, err = fs.GetDuration(f.Name)
		}
	})
	return err
}

// Validate rejects inconsistent settings.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	for name, raw := range map[string]string{
		"server.public_url": c.Server.PublicURL,
		"docserver.url":     c.DocServer.URL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s %q is not an absolute URL", name, raw))
		}
	}
	if c.DocServer.URL != "" && c.Server.PublicURL == "" {
		errs = append(errs, errors.New("server.public_url is required when docserver.url is set"))
	}
	if c.Catalog.MaxDepth < 0 {
		errs = append(errs, errors.New("catalog.max_depth must not be negative"))
	}
	if c.Session.ClickBuffer < 1 {
		errs = append(errs, errors.New("session.click_buffer must be at least 1"))
	}
	if c.Fill.TTL <= 0 {
		errs = append(errs, errors.New("fill.ttl must be positive"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	return errors.Join(errs...)
}

// DocServerURL returns the document server URL without a trailing slash.
func (c Config) DocServerURL() string {
	return strings.TrimRight(c.DocServer.URL, "/")
}

// PublicURL returns the public base URL without a trailing slash.
func (c Config) PublicURL() string {
	return strings.TrimRight(c.Server.PublicURL, "/")
}
