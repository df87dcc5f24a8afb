package events

import (
	"context"
	"log/slog"
	"strings"

	"github.com/imhighyat/book-swap-api/internal/platform/logger"
)

// TransitionRecorder counts transitions; implemented by metrics.Metrics.
type TransitionRecorder interface {
	RecordTransition(status string, err error)
}

// MetricsHandler counts committed transitions by event type.
type MetricsHandler struct {
	recorder TransitionRecorder
}

// NewMetricsHandler creates a MetricsHandler.
func NewMetricsHandler(recorder TransitionRecorder) *MetricsHandler {
	return &MetricsHandler{recorder: recorder}
}

// HandleEvent implements EventHandler.
func (h *MetricsHandler) HandleEvent(ctx context.Context, event *RequestEvent) error {
	h.recorder.RecordTransition(strings.TrimPrefix(event.Type, "request."), nil)
	return nil
}

// AuditLogHandler writes one structured log line per transition.
type AuditLogHandler struct {
	logger *slog.Logger
}

// NewAuditLogHandler creates an AuditLogHandler.
func NewAuditLogHandler(l *slog.Logger) *AuditLogHandler {
	return &AuditLogHandler{logger: l.With(slog.String("component", "audit"))}
}

// HandleEvent implements EventHandler.
func (h *AuditLogHandler) HandleEvent(ctx context.Context, event *RequestEvent) error {
	var p TransitionPayload
	if err := event.UnmarshalPayload(&p); err != nil {
		return err
	}

	attrs := []any{
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.Type),
		slog.String("request_id", event.RequestID.String()),
		slog.String("acting_user", p.ActingUser.String()),
		slog.String("request_from", p.RequestFrom.String()),
		slog.String("request_to", p.RequestTo.String()),
		slog.String("status", p.Status),
	}
	if p.Superseded {
		attrs = append(attrs, slog.Bool("superseded", true))
	}

	logger.FromContextOrDefault(ctx, h.logger).Info("request transition", attrs...)
	return nil
}
