package security

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"filedeck/internal/domain"
	"filedeck/internal/infra/tracer"
)

// RetentionPolicy bounds the audit log by entry age and file size.
type RetentionPolicy struct {
	MaxAge  time.Duration // 0 = no age limit
	MaxSize int64         // bytes; 0 = no size limit
}

// FileAuditLogger appends audit events to a JSONL file.
type FileAuditLogger struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	retention RetentionPolicy
}

var (
	_ domain.AuditLogger      = (*FileAuditLogger)(nil)
	_ domain.OperationAuditor = (*FileAuditLogger)(nil)
)

// NewFileAuditLogger opens (or creates, mode 0600) the audit log at path.
func NewFileAuditLogger(path string) (*FileAuditLogger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create audit log dir: %w", err)
		}
	}
	f, err := openAppend(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &FileAuditLogger{file: f, path: path}, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
}

func (a *FileAuditLogger) Path() string { return a.path }

// SetRetention replaces the retention policy used by EnforceRetention.
func (a *FileAuditLogger) SetRetention(p RetentionPolicy) {
	a.mu.Lock()
	a.retention = p
	a.mu.Unlock()
}

// Log appends event as one JSON line and mirrors it as an event on the
// active span, if any.
func (a *FileAuditLogger) Log(ctx context.Context, event domain.AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	line, err := json.Marshal(event)
	if err != nil {
		return domain.NewDomainError("FileAuditLogger.Log", domain.ErrAuditWrite, err.Error())
	}
	line = append(line, '\n')

	a.mu.Lock()
	_, err = a.file.Write(line)
	a.mu.Unlock()
	if err != nil {
		return domain.NewDomainError("FileAuditLogger.Log", domain.ErrAuditWrite, err.Error())
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		attrs := []attribute.KeyValue{
			tracer.StringAttr("audit.resource", event.Resource),
			tracer.StringAttr("audit.outcome", event.Outcome),
		}
		for k, v := range event.Detail {
			attrs = append(attrs, tracer.StringAttr("audit."+k, v))
		}
		span.AddEvent("audit."+string(event.Type), trace.WithAttributes(attrs...))
	}
	return nil
}

// LogOperation records a mutating operation. The actor comes from ctx and
// the outcome from opErr.
func (a *FileAuditLogger) LogOperation(ctx context.Context, typ domain.AuditEventType, resource, action string, opErr error, detail map[string]string) error {
	return a.Log(ctx, OperationEvent(ctx, typ, resource, action, opErr, detail))
}

// OperationEvent builds the audit record for a mutating operation.
func OperationEvent(ctx context.Context, typ domain.AuditEventType, resource, action string, opErr error, detail map[string]string) domain.AuditEvent {
	ev := domain.AuditEvent{
		Type:     typ,
		Actor:    domain.ActorFromContext(ctx),
		Resource: resource,
		Action:   action,
		Outcome:  "success",
		Detail:   detail,
	}
	if id := domain.RequestIDFromContext(ctx); id != "" {
		if ev.Detail == nil {
			ev.Detail = map[string]string{}
		}
		ev.Detail["request_id"] = id
	}
	if opErr != nil {
		ev.Outcome = "failure"
		if ev.Detail == nil {
			ev.Detail = map[string]string{}
		}
		ev.Detail["error"] = opErr.Error()
	}
	return ev
}

// Close closes the underlying file.
func (a *FileAuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// EnforceRetention rewrites the log keeping only entries allowed by the
// policy: entries older than MaxAge go first, then the oldest remaining
// entries until the file fits in MaxSize. Writers block while it runs.
func (a *FileAuditLogger) EnforceRetention(ctx context.Context) (removed int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.retention
	if p.MaxAge <= 0 && p.MaxSize <= 0 {
		return 0, nil
	}
	if p.MaxAge <= 0 {
		info, err := os.Stat(a.path)
		if err != nil {
			return 0, fmt.Errorf("stat audit log: %w", err)
		}
		if info.Size() <= p.MaxSize {
			return 0, nil
		}
	}

	kept, removed, err := a.filter(p)
	if err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, nil
	}

	if err := a.file.Close(); err != nil {
		return 0, fmt.Errorf("close for retention: %w", err)
	}
	// Reopen whatever ends up at path, so logging survives a failed rewrite.
	defer func() {
		f, openErr := openAppend(a.path)
		if openErr != nil {
			if err == nil {
				err = fmt.Errorf("reopen after retention: %w", openErr)
			}
			return
		}
		a.file = f
	}()

	tmp := a.path + ".tmp"
	if err := writeLines(tmp, kept); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, a.path); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("replace audit log: %w", err)
	}
	return removed, nil
}

func (a *FileAuditLogger) filter(p RetentionPolicy) ([][]byte, int, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return nil, 0, fmt.Errorf("open for retention: %w", err)
	}
	defer f.Close()

	var cutoff time.Time
	if p.MaxAge > 0 {
		cutoff = time.Now().Add(-p.MaxAge)
	}

	var (
		kept    [][]byte
		size    int64
		removed int
	)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if !cutoff.IsZero() {
			var entry struct {
				Timestamp time.Time `json:"timestamp"`
			}
			if json.Unmarshal(line, &entry) == nil && !entry.Timestamp.IsZero() && entry.Timestamp.Before(cutoff) {
				removed++
				continue
			}
		}
		kept = append(kept, append([]byte(nil), line...))
		size += int64(len(line)) + 1
	}
	if err := sc.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan audit log: %w", err)
	}

	for p.MaxSize > 0 && size > p.MaxSize && len(kept) > 0 {
		size -= int64(len(kept[0])) + 1
		kept = kept[1:]
		removed++
	}
	return kept, removed, nil
}

func writeLines(path string, lines [][]byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create temp audit log: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, l := range lines {
		w.Write(l)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write temp audit log: %w", err)
	}
	return f.Close()
}

// ParseRetentionMaxSize parses sizes such as "512KB", "100MB" or "1GB".
// Units are binary; an empty string means no limit.
func ParseRetentionMaxSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}

	mult := int64(1)
	for _, u := range []struct {
		suffix string
		mult   int64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	} {
		if strings.HasSuffix(s, u.suffix) {
			mult = u.mult
			s = strings.TrimSuffix(s, u.suffix)
			break
		}
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("parse size %q: invalid number", s)
	}
	return n * mult, nil
}
