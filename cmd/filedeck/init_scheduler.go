package main

import (
	"context"
	"fmt"
	"log/slog"

	"filedeck/internal/infra/config"
	"filedeck/internal/usecase/scheduling"
)

const auditRetentionTask = "audit-retention"

// initScheduler starts the housekeeping scheduler. With an audit retention
// policy it also prunes the audit log once before returning, so a server that
// was down past its schedule does not wait for the next tick.
func initScheduler(ctx context.Context, cfg *config.Config, sec *securityComponents, log *slog.Logger) (*scheduling.Scheduler, error) {
	sched := scheduling.New(log)

	var retention bool
	if sec.Audit != nil {
		sched.RegisterAction(scheduling.ActionAuditRetention, scheduling.RetentionJob(sec.Audit, log))
		if s := cfg.Audit.Retention.Schedule; s != "" && sec.HasRetention {
			if err := sched.AddTask(scheduling.Task{
				Name:     auditRetentionTask,
				Schedule: s,
				Action:   scheduling.ActionAuditRetention,
			}); err != nil {
				return nil, fmt.Errorf("scheduler: %w", err)
			}
			retention = true
		}
	}
	sched.Start(ctx)

	if retention {
		// Failures are recorded on the task status and logged by the scheduler.
		_ = sched.RunNow(ctx, auditRetentionTask)
	}
	return sched, nil
}
