// Package settings implements the schemaless settings document store.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel/trace"

	"filedeck/internal/domain"
	"filedeck/internal/infra/tracer"
)

const indent = "    "

// Service implements domain.SettingsManager on top of a SettingsStore.
type Service struct {
	store       domain.SettingsStore
	defaultPath string
	bus         domain.EventBus
	audit       domain.OperationAuditor
	logger      *slog.Logger
}

var _ domain.SettingsManager = (*Service)(nil)

// NewService creates a Service. An empty path argument to Get or Set means
// defaultPath. bus may be nil.
func NewService(store domain.SettingsStore, defaultPath string, bus domain.EventBus, logger *slog.Logger) *Service {
	return &Service{
		store:       store,
		defaultPath: defaultPath,
		bus:         bus,
		logger:      logger,
	}
}

// SetAuditLogger records every write.
func (s *Service) SetAuditLogger(a domain.OperationAuditor) { s.audit = a }

func (s *Service) Backend() string { return s.store.Name() }

// Get returns the stored document verbatim.
func (s *Service) Get(ctx context.Context, path string) (_ domain.SettingsDocument, err error) {
	key := s.key(path)
	ctx, span := tracer.StartSpan(ctx, "settings.get", trace.WithAttributes(
		tracer.StringAttr("path", key),
		tracer.StringAttr("backend", s.store.Name()),
	))
	defer func() { tracer.End(span, err) }()

	doc, err := s.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !json.Valid(doc) {
		return nil, domain.NewDomainError("Settings.Get", domain.ErrSettingsCorrupt, key)
	}

	s.emit(ctx, domain.EventSettingsLoaded, map[string]any{"path": key, "bytes": len(doc)})
	return doc, nil
}

// Set replaces the document at path with doc, pretty-printed with a 4-space
// indent. doc must be a JSON object. It returns the key written.
func (s *Service) Set(ctx context.Context, doc domain.SettingsDocument, path string) (_ string, err error) {
	key := s.key(path)
	ctx, span := tracer.StartSpan(ctx, "settings.set", trace.WithAttributes(
		tracer.StringAttr("path", key),
		tracer.StringAttr("backend", s.store.Name()),
	))
	defer func() { tracer.End(span, err) }()

	pretty, err := Format(doc)
	if err != nil {
		return "", err
	}

	err = s.store.Save(ctx, key, pretty)
	s.record(ctx, key, err, len(pretty))
	if err != nil {
		return "", err
	}

	s.logger.Debug("settings saved", "path", key, "backend", s.store.Name(), "bytes", len(pretty))
	s.emit(ctx, domain.EventSettingsSaved, map[string]any{"path": key, "bytes": len(pretty)})
	return key, nil
}

// Format checks that doc is a JSON object and re-indents it with four
// spaces, keeping key order and number spelling.
func Format(doc domain.SettingsDocument) (domain.SettingsDocument, error) {
	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, domain.NewDomainError("Settings.Set", domain.ErrInvalidInput, "config must be a JSON object")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, trimmed, "", indent); err != nil {
		return nil, domain.NewDomainError("Settings.Set", domain.ErrInvalidInput, err.Error())
	}
	return buf.Bytes(), nil
}

func (s *Service) key(path string) string {
	if path == "" {
		return s.defaultPath
	}
	return path
}

func (s *Service) record(ctx context.Context, key string, opErr error, size int) {
	if s.audit == nil {
		return
	}
	detail := map[string]string{"backend": s.store.Name()}
	if opErr == nil {
		detail["bytes"] = strconv.Itoa(size)
	}
	if err := s.audit.LogOperation(ctx, domain.AuditSettingsWrite, key, "write", opErr, detail); err != nil {
		s.logger.Warn("audit write failed", "type", domain.AuditSettingsWrite, "resource", key, "error", err)
	}
}

func (s *Service) emit(ctx context.Context, typ domain.EventType, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, domain.NewEvent(ctx, typ, payload))
}
