package scheduling

import (
	"context"
	"log/slog"
)

// RetentionEnforcer prunes a log and reports how many records it removed.
type RetentionEnforcer interface {
	EnforceRetention(ctx context.Context) (int, error)
}

// RetentionJob adapts a RetentionEnforcer to a scheduler action.
func RetentionJob(r RetentionEnforcer, logger *slog.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		removed, err := r.EnforceRetention(ctx)
		if err != nil {
			return err
		}
		if removed > 0 {
			logger.Info("audit log pruned", "removed", removed)
		}
		return nil
	}
}
