package ports

import (
	"context"
	"log/slog"

	"custodia/pkg/platform/audit"
	"custodia/pkg/requestcontext"
)

// LogAudit is the shared emission helper for ledger services. It stamps the
// event with request-scoped metadata, writes it to the structured log, and
// hands it to the audit publisher if one is configured.
//
// Publisher failures are logged, not propagated: events also land in the
// structured log, and a sink hiccup must not abort a committed ledger
// operation.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event audit.Event, attrs ...any) {
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	if logger != nil {
		args := append([]any{
			"event", event.Action,
			"actor", event.Actor.String(),
			"request_id", event.RequestID,
			"log_type", "audit",
		}, attrs...)
		logger.InfoContext(ctx, "audit event", args...)
	}

	if publisher != nil {
		if err := publisher.Emit(ctx, event); err != nil && logger != nil {
			logger.ErrorContext(ctx, "audit emit failed",
				"event", event.Action,
				"error", err,
			)
		}
	}
}
