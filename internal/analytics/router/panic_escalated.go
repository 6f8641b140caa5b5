package router

import (
	"context"
	"fmt"

	"github.com/resqlink/resqlink-backend/internal/analytics/types"
	"github.com/resqlink/resqlink-backend/pkg/logger"
	"github.com/resqlink/resqlink-backend/pkg/outbox/payloads"
)

type panicEscalatedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newPanicEscalatedHandler(writer Writer, logg *logger.Logger) Handler {
	return &panicEscalatedHandler{writer: writer, logg: logg}
}

func (h *panicEscalatedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.PanicEscalatedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for panic_escalated")
	}

	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type":      envelope.EventType,
		"request_id":      event.RequestID,
		"pending_minutes": event.PendingMinutes,
	})

	row, err := baseResponseRow(envelope)
	if err != nil {
		h.logg.Error(logCtx, "failed to build response row", err)
		return err
	}
	row.RequestID = uuidPtr(event.RequestID)
	row.GroupID = uuidPtr(event.GroupID)
	row.FirmID = uuidPtr(event.FirmID)
	row.PendingMinutes = int64Ptr(int64(event.PendingMinutes))

	if err := h.writer.InsertResponseEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert response row", err)
		return err
	}

	h.logg.Info(logCtx, "panic_escalated handler inserted response row")
	return nil
}
