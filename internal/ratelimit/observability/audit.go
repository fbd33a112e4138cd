// Package observability provides audit logging helpers for the ratelimit module.
package observability

import (
	"context"
	"log/slog"

	"idcheck/pkg/attrs"
	"idcheck/pkg/platform/audit"
	"idcheck/pkg/requestcontext"
)

// AuditPublisher accepts security events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LogAudit logs an audit event to the structured logger and, when set, the
// audit publisher. Subject and reason are taken from attrList.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event audit.AuditEvent, attrList ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}

	if logger != nil {
		args := append(attrList, "event", string(event), "log_type", "audit")
		logger.InfoContext(ctx, string(event), args...)
	}

	if publisher == nil {
		return
	}
	err := publisher.Emit(ctx, audit.Event{
		Action:    string(event),
		RequestID: requestID,
		ClientIP:  attrs.ExtractString(attrList, "ip_prefix"),
		Reason:    attrs.ExtractString(attrList, "reason"),
		Decision:  attrs.ExtractString(attrList, "decision"),
	})
	if err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
