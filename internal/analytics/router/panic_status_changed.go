package router

import (
	"context"
	"fmt"

	"github.com/resqlink/resqlink-backend/internal/analytics/types"
	"github.com/resqlink/resqlink-backend/pkg/logger"
	"github.com/resqlink/resqlink-backend/pkg/outbox/payloads"
)

type panicStatusChangedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newPanicStatusChangedHandler(writer Writer, logg *logger.Logger) Handler {
	return &panicStatusChangedHandler{writer: writer, logg: logg}
}

func (h *panicStatusChangedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.PanicStatusChangedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for panic_status_changed")
	}

	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"request_id": event.RequestID,
		"new_status": event.NewStatus,
	})

	row, err := baseResponseRow(envelope)
	if err != nil {
		h.logg.Error(logCtx, "failed to build response row", err)
		return err
	}
	row.RequestID = uuidPtr(event.RequestID)
	row.GroupID = uuidPtr(event.GroupID)
	row.FirmID = uuidPtr(event.FirmID)
	row.Status = stringPtr(string(event.NewStatus))

	if err := h.writer.InsertResponseEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert response row", err)
		return err
	}

	h.logg.Info(logCtx, "panic_status_changed handler inserted response row")
	return nil
}
