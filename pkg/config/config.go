// Package config assembles the loader configuration from defaults, the
// settings file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bd-pipeline/bd-loader/pkg/graphql"
	"github.com/bd-pipeline/bd-loader/pkg/hooks"
	"github.com/bd-pipeline/bd-loader/pkg/logging"
	"github.com/bd-pipeline/bd-loader/pkg/models"
)

// AppName names the config and cache directories.
const AppName = "bd-loader"

// Accessor names.
const (
	AccessorGraphQL = "graphql"
	AccessorHooks   = "hooks"
)

// Config is everything the loader needs to start.
type Config struct {
	GraphQL graphql.Config
	Auth    graphql.AuthConfig

	Accessor       string
	HookPath       []string
	IconWorkers    int
	RequestWorkers int
	MetricsAddr    string
	OTLPEndpoint   string

	Log          logging.Config
	Settings     *models.Settings
	SettingsPath string
}

// Lookup reads one environment variable.
type Lookup func(key string) (string, bool)

// Load reads .env from the working directory, then the settings file from
// the user config directory, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = ""
	} else {
		dir = filepath.Join(dir, AppName)
	}
	return LoadFrom(dir, os.LookupEnv)
}

// LoadFrom builds the configuration from the settings file in dir and lookup.
func LoadFrom(dir string, lookup Lookup) (*Config, error) {
	settings, path, err := ReadSettings(dir)
	if err != nil {
		return nil, err
	}

	cacheDir := filepath.Join(os.TempDir(), AppName)
	if d, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(d, AppName)
	}

	cfg := &Config{
		GraphQL: graphql.Config{
			Transport:    graphql.TransportHTTPS,
			CacheTTL:     graphql.DefaultCacheTTL,
			CacheMethods: graphql.DefaultCacheMethods,
			Timeout:      30 * time.Second,
		},
		Auth: graphql.AuthConfig{
			TokenFile: filepath.Join(cacheDir, "token.json"),
			Prompt:    os.Stderr,
		},
		Accessor:    settings.Catalog.Accessor,
		IconWorkers: settings.Icons.Workers,
		Log: logging.Config{
			Level:      "info",
			Format:     "console",
			OutputPath: filepath.Join(cacheDir, "loader.log"),
		},
		Settings:     settings,
		SettingsPath: path,
	}

	env := envReader{lookup: lookup}
	env.str("BD_GRAPHQL_HTTPS_ENDPOINT", &cfg.GraphQL.HTTPSEndpoint)
	env.str("BD_GRAPHQL_WSS_ENDPOINT", &cfg.GraphQL.WSSEndpoint)
	env.str("BD_GRAPHQL_TRANSPORT", &cfg.GraphQL.Transport)
	env.seconds("BD_API_CACHE_EXPIRE_TIME", &cfg.GraphQL.CacheTTL)
	env.list("BD_API_CACHE_ALLOWABLE_METHODS", ",", &cfg.GraphQL.CacheMethods)

	env.str("BD_AUTH0_DOMAIN", &cfg.Auth.Domain)
	env.str("BD_AUTH0_CLIENT_ID", &cfg.Auth.ClientID)
	env.str("BD_AUTH0_CLIENT_SECRET", &cfg.Auth.ClientSecret)
	env.str("BD_AUTH0_AUDIENCE", &cfg.Auth.Audience)
	env.str("BD_API_TOKEN", &cfg.Auth.Token)

	if v, ok := lookup(hooks.PathEnv); ok {
		cfg.HookPath = hooks.Dirs(v)
	}
	env.str("BD_LOADER_ACCESSOR", &cfg.Accessor)
	env.integer("BD_LOADER_ICON_WORKERS", &cfg.IconWorkers)
	env.integer("BD_LOADER_REQUEST_WORKERS", &cfg.RequestWorkers)
	env.str("BD_LOADER_METRICS_ADDR", &cfg.MetricsAddr)
	env.str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.OTLPEndpoint)

	env.str("BD_LOADER_LOG_LEVEL", &cfg.Log.Level)
	env.str("BD_LOADER_LOG_FORMAT", &cfg.Log.Format)
	env.str("BD_LOADER_LOG_FILE", &cfg.Log.OutputPath)

	if err := env.err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that have a closed set of choices.
func (c *Config) Validate() error {
	switch c.Accessor {
	case AccessorGraphQL, AccessorHooks:
	default:
		return fmt.Errorf("invalid accessor %q (must be: %s or %s)", c.Accessor, AccessorGraphQL, AccessorHooks)
	}
	switch c.GraphQL.Transport {
	case graphql.TransportHTTPS, graphql.TransportWSS:
	default:
		return fmt.Errorf("invalid transport %q (must be: %s or %s)", c.GraphQL.Transport, graphql.TransportHTTPS, graphql.TransportWSS)
	}
	if c.IconWorkers < 0 || c.RequestWorkers < 0 {
		return fmt.Errorf("worker counts must not be negative")
	}
	return nil
}

// envReader applies set variables over defaults and collects parse errors.
type envReader struct {
	lookup Lookup
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
		return
	}
	*dst = n
}

func (e *envReader) seconds(key string, dst *time.Duration) {
	n := -1
	e.integer(key, &n)
	if n >= 0 {
		*dst = time.Duration(n) * time.Second
	}
}

func (e *envReader) list(key, sep string, dst *[]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}

// Settings file names, in lookup order.
var settingsFiles = []string{"settings.yaml", "settings.yml", "settings.toml"}

// ReadSettings reads the first settings file found in dir over the defaults.
// It returns the path read, or "" when there is none.
func ReadSettings(dir string) (*models.Settings, string, error) {
	settings := models.DefaultSettings()
	if dir == "" {
		return settings, "", nil
	}
	for _, name := range settingsFiles {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("read settings: %w", err)
		}
		if filepath.Ext(name) == ".toml" {
			err = toml.Unmarshal(data, settings)
		} else {
			err = yaml.Unmarshal(data, settings)
		}
		if err != nil {
			return nil, "", fmt.Errorf("parse settings %s: %w", path, err)
		}
		return settings, path, nil
	}
	return settings, "", nil
}

// WriteSettings writes settings as YAML to dir.
func WriteSettings(dir string, settings *models.Settings) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create settings dir: %w", err)
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("encode settings: %w", err)
	}
	path := filepath.Join(dir, settingsFiles[0])
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write settings: %w", err)
	}
	return path, nil
}
