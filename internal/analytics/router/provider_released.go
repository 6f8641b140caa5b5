package router

import (
	"context"
	"fmt"

	"github.com/resqlink/resqlink-backend/internal/analytics/types"
	"github.com/resqlink/resqlink-backend/pkg/logger"
	"github.com/resqlink/resqlink-backend/pkg/outbox/payloads"
)

type providerReleasedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newProviderReleasedHandler(writer Writer, logg *logger.Logger) Handler {
	return &providerReleasedHandler{writer: writer, logg: logg}
}

func (h *providerReleasedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.ProviderReleasedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for provider_released")
	}

	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type":    envelope.EventType,
		"assignment_id": event.AssignmentID,
		"provider_id":   event.ProviderID,
		"reason":        event.Reason,
	})

	row, err := baseResponseRow(envelope)
	if err != nil {
		h.logg.Error(logCtx, "failed to build response row", err)
		return err
	}
	row.AssignmentID = uuidPtr(event.AssignmentID)
	row.RequestID = uuidPtr(event.RequestID)
	row.ProviderID = uuidPtr(event.ProviderID)
	row.Status = stringPtr(event.Reason)

	if err := h.writer.InsertResponseEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert response row", err)
		return err
	}

	h.logg.Info(logCtx, "provider_released handler inserted response row")
	return nil
}
