package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Files     FilesConfig     `yaml:"files"`
	Settings  SettingsConfig  `yaml:"settings"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
	Audit     AuditConfig     `yaml:"audit"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Includes  []string        `yaml:"includes,omitempty"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string          `yaml:"addr"`
	AssetsDir       string          `yaml:"assets_dir"`
	ReadTimeout     time.Duration   `yaml:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	CORS            CORSConfig      `yaml:"cors"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// CORSConfig controls cross-origin access. "*" allows any origin.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

// RateLimitConfig holds per-client token bucket settings.
type RateLimitConfig struct {
	Enabled        bool     `yaml:"enabled"`
	RequestsPerMin int      `yaml:"requests_per_min"`
	Burst          int      `yaml:"burst"`
	TrustedProxies []string `yaml:"trusted_proxies,omitempty"`
}

// FilesConfig holds file operation settings.
type FilesConfig struct {
	Root            string `yaml:"root"`              // empty = no sandbox
	MaxPreviewBytes int64  `yaml:"max_preview_bytes"` // 0 = unlimited
	AllowOverwrite  bool   `yaml:"allow_overwrite"`
}

// SettingsConfig holds settings document store settings.
type SettingsConfig struct {
	Backend     string `yaml:"backend"` // "file" or "sqlite"
	DefaultPath string `yaml:"default_path"`
	SQLitePath  string `yaml:"sqlite_path"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// AuditConfig holds audit logging settings.
type AuditConfig struct {
	Enabled   bool            `yaml:"enabled"`
	Path      string          `yaml:"path"`
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig holds audit log retention policy settings.
type RetentionConfig struct {
	MaxAge   time.Duration `yaml:"max_age"`  // 0 = keep forever
	MaxSize  string        `yaml:"max_size"` // e.g. "100MB"; empty = unlimited
	Schedule string        `yaml:"schedule"` // cron expression or duration
}

// DiscoveryConfig holds LAN service discovery settings.
// mDNS also requires the binary to be built with the "mdns" build tag.
type DiscoveryConfig struct {
	MDNS     bool   `yaml:"mdns"`
	Instance string `yaml:"instance"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			AssetsDir:       "assets",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORS: CORSConfig{
				AllowedOrigins:   []string{"*"},
				AllowCredentials: true,
			},
			RateLimit: RateLimitConfig{
				Enabled:        false,
				RequestsPerMin: 600,
				Burst:          50,
			},
		},
		Files: FilesConfig{
			Root:            "",
			MaxPreviewBytes: 10 * 1024 * 1024, // 10 MiB
			AllowOverwrite:  false,
		},
		Settings: SettingsConfig{
			Backend:     "file",
			DefaultPath: "config.json",
			SQLitePath:  "filedeck.db",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
		Audit: AuditConfig{
			Enabled: false,
			Path:    "audit.jsonl",
			Retention: RetentionConfig{
				Schedule: "@daily",
			},
		},
		Discovery: DiscoveryConfig{
			MDNS:     false,
			Instance: "filedeck",
		},
	}
}

// Load reads a YAML config file on top of Defaults and applies env var
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Includes) > 0 {
		seen := map[string]bool{absPath: true}
		if err := mergeIncludes(cfg, filepath.Dir(absPath), seen, 0); err != nil {
			return nil, err
		}
		// The main file wins over anything it includes.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (second pass): %w", err)
		}
		cfg.Includes = nil
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps FILEDECK_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FILEDECK_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("FILEDECK_SERVER_ASSETS_DIR"); v != "" {
		cfg.Server.AssetsDir = v
	}
	if v := os.Getenv("FILEDECK_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORS.AllowedOrigins = splitAndTrim(v, ",")
	}
	if v := os.Getenv("FILEDECK_SERVER_RATE_LIMIT_ENABLED"); v != "" {
		cfg.Server.RateLimit.Enabled = v == "true"
	}
	if v := os.Getenv("FILEDECK_FILES_ROOT"); v != "" {
		cfg.Files.Root = v
	}
	if v := os.Getenv("FILEDECK_FILES_MAX_PREVIEW_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Files.MaxPreviewBytes = n
		}
	}
	if v := os.Getenv("FILEDECK_FILES_ALLOW_OVERWRITE"); v != "" {
		cfg.Files.AllowOverwrite = v == "true"
	}
	if v := os.Getenv("FILEDECK_SETTINGS_BACKEND"); v != "" {
		cfg.Settings.Backend = v
	}
	if v := os.Getenv("FILEDECK_SETTINGS_DEFAULT_PATH"); v != "" {
		cfg.Settings.DefaultPath = v
	}
	if v := os.Getenv("FILEDECK_SETTINGS_SQLITE_PATH"); v != "" {
		cfg.Settings.SQLitePath = v
	}
	if v := os.Getenv("FILEDECK_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("FILEDECK_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("FILEDECK_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("FILEDECK_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("FILEDECK_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("FILEDECK_AUDIT_ENABLED"); v != "" {
		cfg.Audit.Enabled = v == "true"
	}
	if v := os.Getenv("FILEDECK_AUDIT_PATH"); v != "" {
		cfg.Audit.Path = v
	}
	if v := os.Getenv("FILEDECK_DISCOVERY_MDNS"); v == "true" {
		cfg.Discovery.MDNS = true
	}
}

// splitAndTrim splits s by sep and trims whitespace from each element.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validatePermissions rejects config files writable by group or others.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
