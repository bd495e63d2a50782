package main

import (
	"fmt"
	"log/slog"

	"filedeck/internal/adapter/filesystem"
	"filedeck/internal/adapter/settingsstore"
	"filedeck/internal/domain"
	"filedeck/internal/infra/config"
	"filedeck/internal/security"
)

// securityComponents holds the optional sandbox and audit logger.
type securityComponents struct {
	Sandbox      *security.Sandbox         // nil when files.root is empty
	Audit        *security.FileAuditLogger // nil when audit is disabled
	HasRetention bool
}

func initSecurity(cfg *config.Config, log *slog.Logger) (*securityComponents, func(), error) {
	sec := &securityComponents{}
	cleanup := func() {}

	if cfg.Files.Root != "" {
		sb, err := security.NewSandbox(cfg.Files.Root)
		if err != nil {
			return nil, nil, fmt.Errorf("sandbox: %w", err)
		}
		sec.Sandbox = sb
		log.Info("path sandbox enabled", "root", sb.Root())
	} else {
		log.Warn("files.root is empty; paths are not confined to a sandbox")
	}

	if cfg.Audit.Enabled {
		audit, err := security.NewFileAuditLogger(cfg.Audit.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("audit: %w", err)
		}
		maxSize, err := security.ParseRetentionMaxSize(cfg.Audit.Retention.MaxSize)
		if err != nil {
			audit.Close()
			return nil, nil, fmt.Errorf("audit retention: %w", err)
		}
		policy := security.RetentionPolicy{MaxAge: cfg.Audit.Retention.MaxAge, MaxSize: maxSize}
		audit.SetRetention(policy)
		sec.Audit = audit
		sec.HasRetention = policy.MaxAge > 0 || policy.MaxSize > 0
		cleanup = func() {
			if err := audit.Close(); err != nil {
				log.Warn("audit log close", "error", err)
			}
		}
		log.Info("audit logging enabled", "path", audit.Path(), "retention", sec.HasRetention)
	}

	return sec, cleanup, nil
}

// openSettingsStore builds the configured settings backend. The closer is
// never nil.
func openSettingsStore(cfg config.SettingsConfig, fsys filesystem.Backend, sandbox *security.Sandbox) (domain.SettingsStore, func() error, error) {
	switch cfg.Backend {
	case "sqlite":
		store, err := settingsstore.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		store := settingsstore.NewFileStore(fsys)
		if sandbox != nil {
			store.SetPathValidator(sandbox)
		}
		return store, func() error { return nil }, nil
	}
}
