package audithook

import (
	"context"
	"log/slog"
)

// LogRecorder writes audit events to logger at a level matching their
// severity.
func LogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, ev *AuditEvent) error {
		level := slog.LevelInfo
		switch ev.Severity {
		case SeverityWarning:
			level = slog.LevelWarn
		case SeverityError, SeverityCritical:
			level = slog.LevelError
		}
		logger.Log(ctx, level, "audit",
			"action", ev.Action,
			"resource", ev.Resource,
			"resource_id", ev.ResourceID,
			"category", ev.Category,
			"outcome", ev.Outcome,
			"reason", ev.Reason,
			"metadata", ev.Metadata,
		)
		return nil
	})
}
