package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateServer(cfg, ve)
	validateFiles(cfg, ve)
	validateSettings(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateAudit(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateServer(cfg *Config, ve *ValidationError) {
	s := cfg.Server
	if s.Addr == "" {
		ve.Add("server.addr must not be empty")
	} else if _, _, err := net.SplitHostPort(s.Addr); err != nil {
		ve.Add("server.addr %q is not a valid host:port: %v", s.Addr, err)
	}
	for name, d := range map[string]time.Duration{
		"read_timeout":     s.ReadTimeout,
		"write_timeout":    s.WriteTimeout,
		"idle_timeout":     s.IdleTimeout,
		"shutdown_timeout": s.ShutdownTimeout,
	} {
		if d < 0 {
			ve.Add("server.%s must be >= 0", name)
		}
	}
	if s.RateLimit.Enabled {
		if s.RateLimit.RequestsPerMin <= 0 {
			ve.Add("server.rate_limit.requests_per_min must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.Burst <= 0 {
			ve.Add("server.rate_limit.burst must be > 0 when rate limiting is enabled")
		}
	}
	for _, origin := range s.CORS.AllowedOrigins {
		if strings.TrimSpace(origin) == "" {
			ve.Add("server.cors.allowed_origins must not contain empty entries")
			break
		}
	}
}

func validateFiles(cfg *Config, ve *ValidationError) {
	if cfg.Files.MaxPreviewBytes < 0 {
		ve.Add("files.max_preview_bytes must be >= 0")
	}
}

var validSettingsBackends = map[string]bool{
	"file":   true,
	"sqlite": true,
}

func validateSettings(cfg *Config, ve *ValidationError) {
	s := cfg.Settings
	if !validSettingsBackends[s.Backend] {
		ve.Add("settings.backend %q is invalid (want file or sqlite)", s.Backend)
	}
	if s.DefaultPath == "" {
		ve.Add("settings.default_path must not be empty")
	}
	if s.Backend == "sqlite" && s.SQLitePath == "" {
		ve.Add("settings.sqlite_path is required when settings.backend is sqlite")
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q is invalid (want text or json)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "stdout", "noop", "":
	default:
		ve.Add("tracer.exporter %q is invalid (want stdout or noop)", cfg.Tracer.Exporter)
	}
}

func validateAudit(cfg *Config, ve *ValidationError) {
	a := cfg.Audit
	if !a.Enabled {
		return
	}
	if a.Path == "" {
		ve.Add("audit.path is required when audit is enabled")
	}
	if a.Retention.MaxAge < 0 {
		ve.Add("audit.retention.max_age must be >= 0")
	}
	if a.Retention.Schedule != "" {
		if err := checkSchedule(a.Retention.Schedule); err != nil {
			ve.Add("audit.retention.schedule: %v", err)
		}
	}
}

// checkSchedule accepts the same forms as the scheduler: a standard cron
// expression, a descriptor such as "@daily", or a positive duration.
func checkSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err == nil {
		return nil
	}
	d, err := time.ParseDuration(schedule)
	if err != nil || d <= 0 {
		return fmt.Errorf("%q is not a valid cron expression or positive duration", schedule)
	}
	return nil
}
