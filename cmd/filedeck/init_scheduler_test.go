package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filedeck/internal/domain"
	"filedeck/internal/infra/config"
	"filedeck/internal/infra/logger"
)

func writeAuditLines(t *testing.T, path string, stamps ...time.Time) {
	t.Helper()
	var b strings.Builder
	for _, ts := range stamps {
		line, err := json.Marshal(domain.AuditEvent{Timestamp: ts, Type: domain.AuditFileMove, Outcome: "success"})
		require.NoError(t, err)
		b.Write(line)
		b.WriteByte('\n')
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
}

func TestInitSchedulerPrunesAuditOnStartup(t *testing.T) {
	cfg := config.Defaults()
	cfg.Audit.Enabled = true
	cfg.Audit.Path = filepath.Join(t.TempDir(), "audit.jsonl")
	cfg.Audit.Retention.MaxAge = 24 * time.Hour
	cfg.Audit.Retention.Schedule = "@daily"

	now := time.Now().UTC()
	writeAuditLines(t, cfg.Audit.Path, now.Add(-72*time.Hour), now.Add(-48*time.Hour), now.Add(-time.Minute))

	log := logger.Discard()
	sec, cleanup, err := initSecurity(cfg, log)
	require.NoError(t, err)
	defer cleanup()

	sched, err := initScheduler(context.Background(), cfg, sec, log)
	require.NoError(t, err)
	defer sched.Stop()

	tasks := sched.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, auditRetentionTask, tasks[0].Name)
	assert.False(t, tasks[0].LastRun.IsZero())
	assert.Empty(t, tasks[0].LastErr)

	raw, err := os.ReadFile(cfg.Audit.Path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(raw), "\n"))
}

func TestInitSchedulerWithoutRetention(t *testing.T) {
	cfg := config.Defaults()
	cfg.Audit.Enabled = true
	cfg.Audit.Path = filepath.Join(t.TempDir(), "audit.jsonl")

	log := logger.Discard()
	sec, cleanup, err := initSecurity(cfg, log)
	require.NoError(t, err)
	defer cleanup()

	sched, err := initScheduler(context.Background(), cfg, sec, log)
	require.NoError(t, err)
	defer sched.Stop()
	assert.Empty(t, sched.Tasks())
}
