package config

import (
	"strings"
	"testing"
	"time"
)

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected %q to contain %q", s, substr)
	}
}

func TestValidateDefaultsPass(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("Defaults should pass validation: %v", err)
	}
}

func TestValidateServerAddr(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Addr = "not-an-addr"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "server.addr")

	cfg.Server.Addr = ""
	assertContains(t, Validate(cfg).Error(), "server.addr must not be empty")
}

func TestValidateNegativeTimeout(t *testing.T) {
	cfg := Defaults()
	cfg.Server.IdleTimeout = -time.Second
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "server.idle_timeout must be >= 0")
}

func TestValidateRateLimit(t *testing.T) {
	cfg := Defaults()
	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RequestsPerMin = 0
	cfg.Server.RateLimit.Burst = 0
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "requests_per_min must be > 0")
	assertContains(t, err.Error(), "burst must be > 0")
}

func TestValidateRateLimitDisabledIgnoresValues(t *testing.T) {
	cfg := Defaults()
	cfg.Server.RateLimit.RequestsPerMin = 0
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateEmptyCORSOrigin(t *testing.T) {
	cfg := Defaults()
	cfg.Server.CORS.AllowedOrigins = []string{"http://a.test", " "}
	assertContains(t, Validate(cfg).Error(), "allowed_origins must not contain empty entries")
}

func TestValidateNegativePreviewCap(t *testing.T) {
	cfg := Defaults()
	cfg.Files.MaxPreviewBytes = -1
	assertContains(t, Validate(cfg).Error(), "files.max_preview_bytes must be >= 0")
}

func TestValidateSettingsBackend(t *testing.T) {
	cfg := Defaults()
	cfg.Settings.Backend = "etcd"
	assertContains(t, Validate(cfg).Error(), `settings.backend "etcd" is invalid`)

	cfg = Defaults()
	cfg.Settings.Backend = "sqlite"
	cfg.Settings.SQLitePath = ""
	assertContains(t, Validate(cfg).Error(), "settings.sqlite_path is required")

	cfg = Defaults()
	cfg.Settings.DefaultPath = ""
	assertContains(t, Validate(cfg).Error(), "settings.default_path must not be empty")
}

func TestValidateLoggerFormat(t *testing.T) {
	cfg := Defaults()
	cfg.Logger.Format = "xml"
	assertContains(t, Validate(cfg).Error(), `logger.format "xml" is invalid`)
}

func TestValidateTracerExporter(t *testing.T) {
	cfg := Defaults()
	cfg.Tracer.Enabled = true
	cfg.Tracer.Exporter = "jaeger"
	assertContains(t, Validate(cfg).Error(), `tracer.exporter "jaeger" is invalid`)
}

func TestValidateAuditSchedule(t *testing.T) {
	cases := []struct {
		schedule string
		ok       bool
	}{
		{"@daily", true},
		{"0 3 * * *", true},
		{"6h", true},
		{"-1h", false},
		{"every tuesday", false},
	}
	for _, tc := range cases {
		t.Run(tc.schedule, func(t *testing.T) {
			cfg := Defaults()
			cfg.Audit.Enabled = true
			cfg.Audit.Retention.Schedule = tc.schedule
			err := Validate(cfg)
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateAuditPath(t *testing.T) {
	cfg := Defaults()
	cfg.Audit.Enabled = true
	cfg.Audit.Path = ""
	assertContains(t, Validate(cfg).Error(), "audit.path is required")
}

func TestValidateAccumulatesErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Addr = ""
	cfg.Files.MaxPreviewBytes = -5
	cfg.Logger.Format = "yaml"

	err := Validate(cfg)
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if len(ve.Errors) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(ve.Errors), ve.Errors)
	}
}
