package router

import (
	"context"
	"fmt"

	"github.com/resqlink/resqlink-backend/internal/analytics/types"
	"github.com/resqlink/resqlink-backend/pkg/logger"
	"github.com/resqlink/resqlink-backend/pkg/outbox/payloads"
)

type providerOfflineHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newProviderOfflineHandler(writer Writer, logg *logger.Logger) Handler {
	return &providerOfflineHandler{writer: writer, logg: logg}
}

func (h *providerOfflineHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.ProviderWentOfflineEvent)
	if !ok {
		return fmt.Errorf("invalid payload for provider_went_offline")
	}

	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type":  envelope.EventType,
		"provider_id": event.ProviderID,
		"firm_id":     event.FirmID,
	})

	row, err := baseResponseRow(envelope)
	if err != nil {
		h.logg.Error(logCtx, "failed to build response row", err)
		return err
	}
	row.ProviderID = uuidPtr(event.ProviderID)
	row.FirmID = uuidPtr(event.FirmID)

	if err := h.writer.InsertResponseEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert response row", err)
		return err
	}

	h.logg.Info(logCtx, "provider_went_offline handler inserted response row")
	return nil
}
