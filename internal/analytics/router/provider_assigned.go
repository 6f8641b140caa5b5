package router

import (
	"context"
	"fmt"

	"github.com/resqlink/resqlink-backend/internal/analytics/types"
	"github.com/resqlink/resqlink-backend/pkg/logger"
	"github.com/resqlink/resqlink-backend/pkg/outbox/payloads"
)

type providerAssignedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newProviderAssignedHandler(writer Writer, logg *logger.Logger) Handler {
	return &providerAssignedHandler{writer: writer, logg: logg}
}

func (h *providerAssignedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.ProviderAssignedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for provider_assigned")
	}

	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type":    envelope.EventType,
		"assignment_id": event.AssignmentID,
		"request_id":    event.RequestID,
		"provider_id":   event.ProviderID,
	})

	row, err := baseResponseRow(envelope)
	if err != nil {
		h.logg.Error(logCtx, "failed to build response row", err)
		return err
	}
	row.AssignmentID = uuidPtr(event.AssignmentID)
	row.RequestID = uuidPtr(event.RequestID)
	row.ProviderID = uuidPtr(event.ProviderID)
	row.FirmID = uuidPtr(event.FirmID)
	row.DistanceKM = float64Ptr(event.DistanceKM)

	if err := h.writer.InsertResponseEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert response row", err)
		return err
	}

	h.logg.Info(logCtx, "provider_assigned handler inserted response row")
	return nil
}
