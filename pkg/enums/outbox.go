package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregatePanicRequest OutboxAggregateType = "panic_request"
	AggregateAssignment   OutboxAggregateType = "provider_assignment"
	AggregateProvider     OutboxAggregateType = "provider"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePanicRequest,
	AggregateAssignment,
	AggregateProvider,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventPanicRaised         OutboxEventType = "panic_raised"
	EventPanicStatusChanged  OutboxEventType = "panic_status_changed"
	EventPanicEscalated      OutboxEventType = "panic_escalated"
	EventProviderAssigned    OutboxEventType = "provider_assigned"
	EventProviderReleased    OutboxEventType = "provider_released"
	EventProviderWentOffline OutboxEventType = "provider_went_offline"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPanicRaised,
	EventPanicStatusChanged,
	EventPanicEscalated,
	EventProviderAssigned,
	EventProviderReleased,
	EventProviderWentOffline,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
