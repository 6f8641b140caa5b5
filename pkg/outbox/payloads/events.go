package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/resqlink/resqlink-backend/pkg/enums"
)

// PanicRaisedEvent signals a newly accepted panic request entering dispatch.
type PanicRaisedEvent struct {
	RequestID   uuid.UUID         `json:"request_id"`
	GroupID     uuid.UUID         `json:"group_id"`
	FirmID      uuid.UUID         `json:"firm_id"`
	Phone       string            `json:"phone"`
	ServiceType enums.ServiceType `json:"service_type"`
	Lat         float64           `json:"lat"`
	Lng         float64           `json:"lng"`
	RaisedAt    time.Time         `json:"raised_at"`
}

// PanicStatusChangedEvent is emitted on every lifecycle transition of a request.
type PanicStatusChangedEvent struct {
	RequestID  uuid.UUID            `json:"request_id"`
	GroupID    uuid.UUID            `json:"group_id"`
	FirmID     uuid.UUID            `json:"firm_id"`
	OldStatus  *enums.RequestStatus `json:"old_status,omitempty"`
	NewStatus  enums.RequestStatus  `json:"new_status"`
	Actor      string               `json:"actor,omitempty"`
	Message    string               `json:"message,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// PanicEscalatedEvent reports a request still pending past the staleness threshold.
type PanicEscalatedEvent struct {
	RequestID      uuid.UUID `json:"request_id"`
	GroupID        uuid.UUID `json:"group_id"`
	FirmID         uuid.UUID `json:"firm_id"`
	PendingMinutes int       `json:"pending_minutes"`
	EscalatedAt    time.Time `json:"escalated_at"`
}

// ProviderAssignedEvent is emitted when a provider is exclusively claimed for a request.
type ProviderAssignedEvent struct {
	AssignmentID         uuid.UUID `json:"assignment_id"`
	RequestID            uuid.UUID `json:"request_id"`
	ProviderID           uuid.UUID `json:"provider_id"`
	FirmID               uuid.UUID `json:"firm_id"`
	DistanceKM           float64   `json:"distance_km"`
	EstimatedDurationMin int       `json:"estimated_duration_min"`
	AssignedAt           time.Time `json:"assigned_at"`
}

// ProviderReleasedEvent is emitted when an assignment closes and the provider returns to the pool.
type ProviderReleasedEvent struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
	RequestID    uuid.UUID `json:"request_id"`
	ProviderID   uuid.UUID `json:"provider_id"`
	Reason       string    `json:"reason,omitempty"`
	ReleasedAt   time.Time `json:"released_at"`
}

// ProviderWentOfflineEvent reports a provider swept offline after silent location pings.
type ProviderWentOfflineEvent struct {
	ProviderID     uuid.UUID  `json:"provider_id"`
	FirmID         uuid.UUID  `json:"firm_id"`
	LastLocationAt *time.Time `json:"last_location_at,omitempty"`
	SweptAt        time.Time  `json:"swept_at"`
}
