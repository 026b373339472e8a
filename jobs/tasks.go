package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/backlot-hq/backlot/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionPrune removes expired sessions from the store.
	TaskSessionPrune = "sessions:prune"
	// TaskAuditPrune trims audit log rows older than the retention window.
	TaskAuditPrune = "audit:prune"
)

// SessionPruner deletes sessions that expired before the given time.
type SessionPruner interface {
	PruneSessions(ctx context.Context, before time.Time) (int64, error)
}

// AuditPruner deletes audit log rows older than the given time.
type AuditPruner interface {
	PruneAuditLogs(ctx context.Context, before time.Time) (int64, error)
}

// SessionPrunePayload controls how far back the prune reaches.
type SessionPrunePayload struct {
	GracePeriod time.Duration `json:"grace_period"`
}

// AuditPrunePayload controls the audit retention window.
type AuditPrunePayload struct {
	Retention time.Duration `json:"retention"`
}

// NewSessionPruneTask constructs the session prune task.
func NewSessionPruneTask(payload SessionPrunePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionPrune, data), nil
}

// NewAuditPruneTask constructs the audit prune task.
func NewAuditPruneTask(payload AuditPrunePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, data), nil
}

// SessionPruneHandler returns an Asynq handler bound to the pruner.
func SessionPruneHandler(pruner SessionPruner, logger *slog.Logger) asynq.HandlerFunc {
	metrics := jobmetrics.NewMetrics(nil)
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskSessionPrune)
		var payload SessionPrunePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		cutoff := time.Now().Add(-payload.GracePeriod)
		removed, err := pruner.PruneSessions(ctx, cutoff)
		if err != nil {
			logger.Error("session prune failed", slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("session prune completed", slog.Int64("removed", removed))
		return tracker.End(nil)
	}
}

// AuditPruneHandler returns an Asynq handler bound to the audit pruner.
func AuditPruneHandler(pruner AuditPruner, logger *slog.Logger) asynq.HandlerFunc {
	metrics := jobmetrics.NewMetrics(nil)
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskAuditPrune)
		var payload AuditPrunePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		retention := payload.Retention
		if retention <= 0 {
			retention = 90 * 24 * time.Hour
		}
		removed, err := pruner.PruneAuditLogs(ctx, time.Now().Add(-retention))
		if err != nil {
			logger.Error("audit prune failed", slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("audit prune completed", slog.Int64("removed", removed))
		return tracker.End(nil)
	}
}
