package router

import (
	"fmt"

	"github.com/resqlink/resqlink-backend/internal/analytics/types"
	analyticswriter "github.com/resqlink/resqlink-backend/internal/analytics/writer"
)

// baseResponseRow fills the envelope-level columns shared by every handler.
func baseResponseRow(envelope types.Envelope) (types.ResponseEventRow, error) {
	payloadJSON, err := analyticswriter.EncodeJSON(envelope.Payload)
	if err != nil {
		return types.ResponseEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}
	return types.ResponseEventRow{
		EventID:    envelope.EventID,
		EventType:  string(envelope.EventType),
		OccurredAt: envelope.OccurredAt,
		Payload:    payloadJSON,
	}, nil
}
