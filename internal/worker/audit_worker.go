package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/orchid-auth/internal/events"
)

// StartAuditWorker subscribes a structured audit log to every account and
// role event.
func StartAuditWorker(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	audit := logger.Named("audit")
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, func(_ context.Context, e events.Event) error {
			level := zap.InfoLevel
			if e.Type == events.EventLoginFailed {
				level = zap.WarnLevel
			}
			if ce := audit.Check(level, string(e.Type)); ce != nil {
				ce.Write(
					zap.String("event_id", e.ID),
					zap.String("subject", e.Subject),
					zap.Time("at", e.Timestamp),
					zap.Any("payload", e.Payload),
				)
			}
			return nil
		})
	}
}
