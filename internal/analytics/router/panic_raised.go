package router

import (
	"context"
	"fmt"

	"github.com/resqlink/resqlink-backend/internal/analytics/types"
	"github.com/resqlink/resqlink-backend/pkg/logger"
	"github.com/resqlink/resqlink-backend/pkg/outbox/payloads"
)

type panicRaisedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newPanicRaisedHandler(writer Writer, logg *logger.Logger) Handler {
	return &panicRaisedHandler{writer: writer, logg: logg}
}

func (h *panicRaisedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.PanicRaisedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for panic_raised")
	}

	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type":   envelope.EventType,
		"request_id":   event.RequestID,
		"group_id":     event.GroupID,
		"firm_id":      event.FirmID,
		"service_type": event.ServiceType,
	})

	row, err := baseResponseRow(envelope)
	if err != nil {
		h.logg.Error(logCtx, "failed to build response row", err)
		return err
	}
	row.RequestID = uuidPtr(event.RequestID)
	row.GroupID = uuidPtr(event.GroupID)
	row.FirmID = uuidPtr(event.FirmID)
	row.ServiceType = stringPtr(string(event.ServiceType))

	if err := h.writer.InsertResponseEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert response row", err)
		return err
	}

	h.logg.Info(logCtx, "panic_raised handler inserted response row")
	return nil
}
