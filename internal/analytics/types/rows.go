package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// ResponseEventRow mirrors the response_events BigQuery schema.
type ResponseEventRow struct {
	EventID        string             `bigquery:"event_id"`
	EventType      string             `bigquery:"event_type"`
	OccurredAt     time.Time          `bigquery:"occurred_at"`
	RequestID      *string            `bigquery:"request_id"`
	GroupID        *string            `bigquery:"group_id"`
	FirmID         *string            `bigquery:"firm_id"`
	ProviderID     *string            `bigquery:"provider_id"`
	AssignmentID   *string            `bigquery:"assignment_id"`
	ServiceType    *string            `bigquery:"service_type"`
	Status         *string            `bigquery:"status"`
	DistanceKM     *float64           `bigquery:"distance_km"`
	PendingMinutes *int64             `bigquery:"pending_minutes"`
	Payload        cbigquery.NullJSON `bigquery:"payload"`
}
