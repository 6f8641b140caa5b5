package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/resqlink/resqlink-backend/internal/dispatch"
)

func TestAssignmentCreateValidation(t *testing.T) {
	logg := testLogger()

	t.Run("missing provider id", func(t *testing.T) {
		body := `{"request_id":"` + uuid.NewString() + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/assignments", strings.NewReader(body))
		rec := httptest.NewRecorder()
		AssignmentCreate(&dispatch.Service{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 without provider_id, got %d", rec.Code)
		}
	})

	t.Run("malformed request id", func(t *testing.T) {
		body := `{"provider_id":"` + uuid.NewString() + `","request_id":"banana"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/assignments", strings.NewReader(body))
		rec := httptest.NewRecorder()
		AssignmentCreate(&dispatch.Service{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for malformed request_id, got %d", rec.Code)
		}
	})

	t.Run("negative eta rejected", func(t *testing.T) {
		body := `{"provider_id":"` + uuid.NewString() + `","request_id":"` + uuid.NewString() + `","eta_minutes":-4}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/assignments", strings.NewReader(body))
		rec := httptest.NewRecorder()
		AssignmentCreate(&dispatch.Service{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for negative eta, got %d", rec.Code)
		}
	})
}
