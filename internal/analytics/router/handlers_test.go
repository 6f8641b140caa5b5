package router

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/resqlink/resqlink-backend/internal/analytics/types"
	"github.com/resqlink/resqlink-backend/pkg/enums"
	"github.com/resqlink/resqlink-backend/pkg/outbox/payloads"
)

func handleEvent(t *testing.T, eventType enums.OutboxEventType, payload any) types.ResponseEventRow {
	t.Helper()
	writer := &fakeWriter{}
	router, err := NewRouter(writer, testLogger(), nil)
	if err != nil {
		t.Fatalf("construct router: %v", err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	env := types.Envelope{
		EventID:    "11111111-1111-1111-1111-111111111111",
		EventType:  eventType,
		OccurredAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Payload:    data,
	}
	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("handle %s: %v", eventType, err)
	}
	if len(writer.inserted) != 1 {
		t.Fatalf("expected one row, got %d", len(writer.inserted))
	}

	row := writer.inserted[0]
	if row.EventID != env.EventID {
		t.Fatalf("expected event id %s, got %s", env.EventID, row.EventID)
	}
	if row.EventType != string(eventType) {
		t.Fatalf("expected event type %s, got %s", eventType, row.EventType)
	}
	if !row.Payload.Valid {
		t.Fatal("expected payload json to be valid")
	}
	return row
}

func TestPanicRaisedRow(t *testing.T) {
	row := handleEvent(t, enums.EventPanicRaised, payloads.PanicRaisedEvent{
		RequestID:   uuidFromString(t, "00000000-0000-0000-0000-00000000000a"),
		GroupID:     uuidFromString(t, "00000000-0000-0000-0000-00000000000b"),
		FirmID:      uuidFromString(t, "00000000-0000-0000-0000-00000000000c"),
		ServiceType: enums.ServiceTypeAmbulance,
		Lat:         -33.9249,
		Lng:         18.4241,
	})

	if row.RequestID == nil || *row.RequestID != "00000000-0000-0000-0000-00000000000a" {
		t.Fatalf("unexpected request id %v", row.RequestID)
	}
	if row.GroupID == nil || *row.GroupID != "00000000-0000-0000-0000-00000000000b" {
		t.Fatalf("unexpected group id %v", row.GroupID)
	}
	if row.ServiceType == nil || *row.ServiceType != string(enums.ServiceTypeAmbulance) {
		t.Fatalf("unexpected service type %v", row.ServiceType)
	}
	if row.ProviderID != nil {
		t.Fatal("expected no provider id on panic_raised")
	}
}

func TestPanicStatusChangedRow(t *testing.T) {
	row := handleEvent(t, enums.EventPanicStatusChanged, payloads.PanicStatusChangedEvent{
		RequestID: uuidFromString(t, "00000000-0000-0000-0000-00000000000a"),
		GroupID:   uuidFromString(t, "00000000-0000-0000-0000-00000000000b"),
		FirmID:    uuidFromString(t, "00000000-0000-0000-0000-00000000000c"),
		NewStatus: enums.RequestStatusEnRoute,
	})

	if row.Status == nil || *row.Status != string(enums.RequestStatusEnRoute) {
		t.Fatalf("unexpected status %v", row.Status)
	}
	if row.RequestID == nil {
		t.Fatal("expected request id to be set")
	}
}

func TestPanicEscalatedRow(t *testing.T) {
	row := handleEvent(t, enums.EventPanicEscalated, payloads.PanicEscalatedEvent{
		RequestID:      uuidFromString(t, "00000000-0000-0000-0000-00000000000a"),
		GroupID:        uuidFromString(t, "00000000-0000-0000-0000-00000000000b"),
		FirmID:         uuidFromString(t, "00000000-0000-0000-0000-00000000000c"),
		PendingMinutes: 12,
	})

	if row.PendingMinutes == nil || *row.PendingMinutes != 12 {
		t.Fatalf("unexpected pending minutes %v", row.PendingMinutes)
	}
}

func TestProviderAssignedRow(t *testing.T) {
	row := handleEvent(t, enums.EventProviderAssigned, payloads.ProviderAssignedEvent{
		AssignmentID: uuidFromString(t, "00000000-0000-0000-0000-00000000000d"),
		RequestID:    uuidFromString(t, "00000000-0000-0000-0000-00000000000a"),
		ProviderID:   uuidFromString(t, "00000000-0000-0000-0000-00000000000e"),
		FirmID:       uuidFromString(t, "00000000-0000-0000-0000-00000000000c"),
		DistanceKM:   4.2,
	})

	if row.AssignmentID == nil || *row.AssignmentID != "00000000-0000-0000-0000-00000000000d" {
		t.Fatalf("unexpected assignment id %v", row.AssignmentID)
	}
	if row.DistanceKM == nil || *row.DistanceKM != 4.2 {
		t.Fatalf("unexpected distance %v", row.DistanceKM)
	}
}

func TestProviderReleasedRow(t *testing.T) {
	row := handleEvent(t, enums.EventProviderReleased, payloads.ProviderReleasedEvent{
		AssignmentID: uuidFromString(t, "00000000-0000-0000-0000-00000000000d"),
		RequestID:    uuidFromString(t, "00000000-0000-0000-0000-00000000000a"),
		ProviderID:   uuidFromString(t, "00000000-0000-0000-0000-00000000000e"),
		Reason:       "completed",
	})

	if row.Status == nil || *row.Status != "completed" {
		t.Fatalf("unexpected release reason %v", row.Status)
	}
	if row.ProviderID == nil {
		t.Fatal("expected provider id to be set")
	}
}

func TestProviderWentOfflineRow(t *testing.T) {
	row := handleEvent(t, enums.EventProviderWentOffline, payloads.ProviderWentOfflineEvent{
		ProviderID: uuidFromString(t, "00000000-0000-0000-0000-00000000000e"),
		FirmID:     uuidFromString(t, "00000000-0000-0000-0000-00000000000c"),
	})

	if row.ProviderID == nil || *row.ProviderID != "00000000-0000-0000-0000-00000000000e" {
		t.Fatalf("unexpected provider id %v", row.ProviderID)
	}
	if row.RequestID != nil {
		t.Fatal("expected no request id on provider_went_offline")
	}
}
