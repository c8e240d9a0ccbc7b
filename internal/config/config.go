// Package config resolves lernzeit's settings from defaults, JSONC config
// files, the environment and command-line flags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/tailscale/hujson"

	"github.com/sadopc/lernzeit/internal/logging"
	"github.com/sadopc/lernzeit/internal/store"
)

var (
	ErrInvalid      = errors.New("invalid config")
	ErrFileNotFound = errors.New("config file not found")
)

// Config holds all configuration options.
type Config struct {
	Backend   string `json:"backend"`
	DataPath  string `json:"data_path"`
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
	Listen    string `json:"listen"`
	Timezone  string `json:"timezone,omitempty"`
}

// Sources records which config files were loaded.
type Sources struct {
	Global   string
	Explicit string
}

func Default() Config {
	return Config{
		Backend:   store.DriverSQLite,
		LogLevel:  "warn",
		LogFormat: "text",
		Listen:    "127.0.0.1:7420",
	}
}

// Flag names registered by RegisterFlags.
const (
	FlagConfig    = "config"
	FlagBackend   = "backend"
	FlagData      = "data"
	FlagLogLevel  = "log-level"
	FlagLogFormat = "log-format"
	FlagTimezone  = "timezone"
)

// Environment variables read by Load.
const (
	EnvBackend  = "LERNZEIT_BACKEND"
	EnvData     = "LERNZEIT_DATA"
	EnvLogLevel = "LERNZEIT_LOG_LEVEL"
)

// RegisterFlags adds the global configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP(FlagConfig, "c", "", "use specified config file")
	fs.String(FlagBackend, "", "storage backend: sqlite, bolt or dir")
	fs.String(FlagData, "", "path of the database file or data directory")
	fs.String(FlagLogLevel, "", "log level: debug, info, warn or error")
	fs.String(FlagLogFormat, "", "log format: text or json")
	fs.String(FlagTimezone, "", "IANA time zone for day boundaries (default: local)")
}

// Load resolves the configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global config ($XDG_CONFIG_HOME/lernzeit/config.json or ~/.config/lernzeit/config.json)
// 3. Explicit config file (--config)
// 4. Environment
// 5. Flags that were set on the command line.
//
// env is a KEY=VALUE list; nil means the process environment.
func Load(fs *pflag.FlagSet, env []string) (Config, Sources, error) {
	cfg := Default()
	var sources Sources

	if path := globalConfigPath(env); path != "" {
		fileCfg, loaded, err := loadFile(path, false)
		if err != nil {
			return Config{}, Sources{}, err
		}
		if loaded {
			sources.Global = path
			cfg = merge(cfg, fileCfg)
		}
	}

	if explicit := flagValue(fs, FlagConfig); explicit != "" {
		fileCfg, _, err := loadFile(explicit, true)
		if err != nil {
			return Config{}, Sources{}, err
		}
		sources.Explicit = explicit
		cfg = merge(cfg, fileCfg)
	}

	cfg = merge(cfg, Config{
		Backend:  lookupEnv(env, EnvBackend),
		DataPath: lookupEnv(env, EnvData),
		LogLevel: lookupEnv(env, EnvLogLevel),
	})

	cfg = merge(cfg, Config{
		Backend:   flagValue(fs, FlagBackend),
		DataPath:  flagValue(fs, FlagData),
		LogLevel:  flagValue(fs, FlagLogLevel),
		LogFormat: flagValue(fs, FlagLogFormat),
		Timezone:  flagValue(fs, FlagTimezone),
	})

	if err := validate(cfg); err != nil {
		return Config{}, Sources{}, err
	}

	if cfg.DataPath == "" {
		p, err := DefaultDataPath(cfg.Backend)
		if err != nil {
			return Config{}, Sources{}, fmt.Errorf("resolve data path: %w", err)
		}
		cfg.DataPath = p
	}
	return cfg, sources, nil
}

// LogPath is where the terminal UI writes its log, next to the data.
func (c Config) LogPath() string {
	return filepath.Join(filepath.Dir(c.DataPath), "lernzeit.log")
}

// Location returns the time zone used for calendar bucketing.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// DefaultDataPath returns where backend keeps its data when no path is
// configured. All backends live next to the default SQLite database.
func DefaultDataPath(backend string) (string, error) {
	dbPath, err := store.DefaultDBPath()
	if err != nil {
		return "", err
	}
	switch backend {
	case store.DriverBolt:
		return filepath.Join(filepath.Dir(dbPath), "lernzeit.bolt"), nil
	case store.DriverDir:
		return filepath.Join(filepath.Dir(dbPath), "data"), nil
	default:
		return dbPath, nil
	}
}

func globalConfigPath(env []string) string {
	if xdg := lookupEnv(env, "XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lernzeit", "config.json")
	}
	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "lernzeit", "config.json")
	}
	return ""
}

func lookupEnv(env []string, key string) string {
	if env == nil {
		return os.Getenv(key)
	}
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, key+"="); ok {
			return after
		}
	}
	return ""
}

func flagValue(fs *pflag.FlagSet, name string) string {
	if fs == nil || !fs.Changed(name) {
		return ""
	}
	v, err := fs.GetString(name)
	if err != nil {
		return ""
	}
	return v
}

// loadFile reads a JSONC config file. A missing optional file is not an
// error and reports loaded=false.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return Config{}, false, fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}
			return Config{}, false, nil
		}
		return Config{}, false, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}
	return cfg, true, nil
}

func parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.Backend != "" {
		base.Backend = overlay.Backend
	}
	if overlay.DataPath != "" {
		base.DataPath = overlay.DataPath
	}
	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}
	if overlay.LogFormat != "" {
		base.LogFormat = overlay.LogFormat
	}
	if overlay.Listen != "" {
		base.Listen = overlay.Listen
	}
	if overlay.Timezone != "" {
		base.Timezone = overlay.Timezone
	}
	return base
}

func validate(cfg Config) error {
	switch cfg.Backend {
	case store.DriverSQLite, store.DriverBolt, store.DriverDir:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, cfg.Backend)
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if cfg.LogFormat != logging.FormatText && cfg.LogFormat != logging.FormatJSON {
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, cfg.LogFormat)
	}
	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("%w: timezone: %w", ErrInvalid, err)
	}
	return nil
}

// Format returns the config as indented JSON.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format config: %w", err)
	}
	return string(data), nil
}
