package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"

	"github.com/resqlink/resqlink-backend/internal/analytics/types"
	"github.com/resqlink/resqlink-backend/pkg/enums"
	"github.com/resqlink/resqlink-backend/pkg/logger"
	"github.com/resqlink/resqlink-backend/pkg/outbox/payloads"
)

func TestRouterUnsupportedEvent(t *testing.T) {
	router := newTestRouter(t, nil)
	env := types.Envelope{
		EventType: enums.OutboxEventType("unsupported"),
		Payload:   []byte(`{"foo":"bar"}`),
	}
	err := router.Handle(context.Background(), env)
	if !errors.Is(err, ErrUnsupportedEventType) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestRouterEmptyPayload(t *testing.T) {
	router := newTestRouter(t, nil)
	env := types.Envelope{
		EventType: enums.EventPanicRaised,
	}
	if err := router.Handle(context.Background(), env); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestRouterRoutesToHandler(t *testing.T) {
	handler := &stubHandler{}
	router := newTestRouter(t, map[enums.OutboxEventType]Handler{
		enums.EventPanicRaised: handler,
	})
	payload := payloads.PanicRaisedEvent{
		RequestID: uuidFromString(t, "00000000-0000-0000-0000-000000000001"),
		GroupID:   uuidFromString(t, "00000000-0000-0000-0000-000000000002"),
	}
	data, _ := json.Marshal(payload)
	env := types.Envelope{
		EventType: enums.EventPanicRaised,
		Payload:   data,
	}
	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handler.called {
		t.Fatalf("handler not invoked")
	}
}

func newTestRouter(t *testing.T, overrides map[enums.OutboxEventType]Handler) *Router {
	t.Helper()
	router, err := NewRouter(&fakeWriter{}, testLogger(), overrides)
	if err != nil {
		t.Fatalf("construct router: %v", err)
	}
	return router
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
}

type stubHandler struct {
	called bool
}

func (s *stubHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	s.called = true
	return nil
}

func uuidFromString(t *testing.T, value string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(value)
	if err != nil {
		t.Fatalf("parse uuid: %v", err)
	}
	return id
}
