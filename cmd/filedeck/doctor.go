package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"filedeck/internal/adapter/filesystem"
	"filedeck/internal/adapter/settingsstore"
	"filedeck/internal/infra/config"
	"filedeck/internal/security"
	"filedeck/internal/usecase/discovery"
	"filedeck/internal/usecase/scheduling"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

func newDoctorCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run health checks on the configuration and environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.OutOrStdout(), resolveConfigPath(*cfgPath))
		},
	}
}

// runDoctor executes all health checks and reports results to w.
func runDoctor(w io.Writer, cfgPath string) error {
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "Listen address", Fn: checkListenAddr},
		{Name: "Assets directory", Fn: checkAssetsDir},
		{Name: "Sandbox root", Fn: checkSandboxRoot},
		{Name: "Settings store", Fn: checkSettingsStore},
		{Name: "Audit log", Fn: checkAuditLog},
		{Name: "Service discovery", Fn: checkDiscovery},
	}

	fmt.Fprintln(w, "filedeck doctor")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Fprintf(w, "  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(w, "      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

var errNoConfig = CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}

// checkConfigFile reports on the config file. A missing file is only a
// warning since defaults apply.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Fix the reported fields in " + cfgPath,
			}
		}
		if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("%s not found, using defaults", cfgPath),
			}
		}
		return CheckResult{Status: StatusPass, Message: "config loaded from " + cfgPath}
	}
}

// checkListenAddr verifies the server address can be bound right now.
func checkListenAddr(cfg *config.Config) CheckResult {
	if cfg == nil {
		return errNoConfig
	}
	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot listen on %s: %v", cfg.Server.Addr, err),
			Fix:     "Stop the process using the port or change server.addr",
		}
	}
	ln.Close()
	return CheckResult{Status: StatusPass, Message: cfg.Server.Addr + " is available"}
}

func checkAssetsDir(cfg *config.Config) CheckResult {
	if cfg == nil {
		return errNoConfig
	}
	dir := cfg.Server.AssetsDir
	if dir == "" {
		return CheckResult{Status: StatusPass, Message: "static mount disabled"}
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s is not a directory; /assets will not be served", dir),
		}
	}
	return CheckResult{Status: StatusPass, Message: "serving " + dir}
}

func checkSandboxRoot(cfg *config.Config) CheckResult {
	if cfg == nil {
		return errNoConfig
	}
	if cfg.Files.Root == "" {
		return CheckResult{
			Status:  StatusWarn,
			Message: "no sandbox; any path the process can reach is exposed",
			Fix:     "Set files.root to confine file operations",
		}
	}
	sb, err := security.NewSandbox(cfg.Files.Root)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error(), Fix: "Create the directory or fix files.root"}
	}
	return CheckResult{Status: StatusPass, Message: "confined to " + sb.Root()}
}

func checkSettingsStore(cfg *config.Config) CheckResult {
	if cfg == nil {
		return errNoConfig
	}
	switch cfg.Settings.Backend {
	case "sqlite":
		store, err := settingsstore.NewSQLiteStore(cfg.Settings.SQLitePath)
		if err != nil {
			return CheckResult{Status: StatusFail, Message: err.Error()}
		}
		defer store.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			return CheckResult{Status: StatusFail, Message: "sqlite ping: " + err.Error()}
		}
		keys, err := store.Keys(ctx)
		if err != nil {
			return CheckResult{Status: StatusFail, Message: "sqlite query: " + err.Error()}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("sqlite at %s, %d stored document(s)", cfg.Settings.SQLitePath, len(keys)),
		}
	default:
		store := settingsstore.NewFileStore(filesystem.NewLocal())
		if cfg.Files.Root != "" {
			sb, err := security.NewSandbox(cfg.Files.Root)
			if err != nil {
				return CheckResult{Status: StatusFail, Message: err.Error()}
			}
			store.SetPathValidator(sb)
		}
		resolved, err := store.Resolve(cfg.Settings.DefaultPath)
		if err != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: err.Error(),
				Fix:     "Point settings.default_path inside files.root",
			}
		}
		if info, err := os.Stat(filepath.Dir(resolved)); err != nil || !info.IsDir() {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("directory %s for %s does not exist", filepath.Dir(resolved), resolved),
			}
		}
		return CheckResult{Status: StatusPass, Message: "file store, default document " + resolved}
	}
}

func checkAuditLog(cfg *config.Config) CheckResult {
	if cfg == nil {
		return errNoConfig
	}
	if !cfg.Audit.Enabled {
		return CheckResult{Status: StatusPass, Message: "disabled"}
	}
	if _, err := security.ParseRetentionMaxSize(cfg.Audit.Retention.MaxSize); err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error(), Fix: "Use a size such as 100MB"}
	}
	if _, err := scheduling.ParseSchedule(cfg.Audit.Retention.Schedule); cfg.Audit.Retention.Schedule != "" && err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}
	f, err := os.OpenFile(cfg.Audit.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: "cannot open audit log: " + err.Error()}
	}
	f.Close()
	return CheckResult{Status: StatusPass, Message: "writing to " + cfg.Audit.Path}
}

func checkDiscovery(cfg *config.Config) CheckResult {
	if cfg == nil {
		return errNoConfig
	}
	switch {
	case !cfg.Discovery.MDNS:
		return CheckResult{Status: StatusPass, Message: "disabled"}
	case !discovery.Available:
		return CheckResult{
			Status:  StatusWarn,
			Message: "discovery.mdns is on but this binary lacks mDNS support",
			Fix:     "Rebuild with -tags mdns",
		}
	}
	return CheckResult{Status: StatusPass, Message: "advertising " + discovery.ServiceType + " as " + cfg.Discovery.Instance}
}
