package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resqlink/resqlink-backend/api/responses"
	"github.com/resqlink/resqlink-backend/api/validators"
	"github.com/resqlink/resqlink-backend/internal/dispatch"
	"github.com/resqlink/resqlink-backend/pkg/db/models"
	"github.com/resqlink/resqlink-backend/pkg/enums"
	pkgerrors "github.com/resqlink/resqlink-backend/pkg/errors"
	"github.com/resqlink/resqlink-backend/pkg/logger"
)

type assignmentCreateRequest struct {
	ProviderID string   `json:"provider_id" validate:"required"`
	RequestID  string   `json:"request_id" validate:"required"`
	ETAMinutes *float64 `json:"eta_minutes" validate:"omitempty,gt=0"`
}

func (r assignmentCreateRequest) toParams() (dispatch.AssignParams, error) {
	providerID, err := uuid.Parse(strings.TrimSpace(r.ProviderID))
	if err != nil {
		return dispatch.AssignParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid provider_id")
	}
	requestID, err := uuid.Parse(strings.TrimSpace(r.RequestID))
	if err != nil {
		return dispatch.AssignParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request_id")
	}
	return dispatch.AssignParams{
		ProviderID: providerID,
		RequestID:  requestID,
		ETAMinutes: r.ETAMinutes,
	}, nil
}

// AssignmentCreate claims a provider for a panic request. Concurrent claims
// on the same provider or request resolve to exactly one winner.
func AssignmentCreate(svc *dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch service unavailable"))
			return
		}

		var payload assignmentCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := payload.toParams()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.FirmScope, err = claimFirmScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assignment, err := svc.Assign(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, assignmentResponseFromModel(assignment))
	}
}

type assignmentResponse struct {
	ID                   uuid.UUID              `json:"id"`
	ProviderID           uuid.UUID              `json:"provider_id"`
	RequestID            uuid.UUID              `json:"request_id"`
	Status               enums.AssignmentStatus `json:"status"`
	DistanceKM           float64                `json:"distance_km"`
	EstimatedDurationMin float64                `json:"estimated_duration_min"`
	EstimatedFee         decimal.Decimal        `json:"estimated_fee"`
	AssignedAt           time.Time              `json:"assigned_at"`
	EstimatedArrivalAt   *time.Time             `json:"estimated_arrival_at,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
}

func assignmentResponseFromModel(m *models.ProviderAssignment) assignmentResponse {
	return assignmentResponse{
		ID:                   m.ID,
		ProviderID:           m.ProviderID,
		RequestID:            m.RequestID,
		Status:               m.Status,
		DistanceKM:           m.DistanceKM,
		EstimatedDurationMin: m.EstimatedDurationMin,
		EstimatedFee:         m.EstimatedFee,
		AssignedAt:           m.AssignedAt,
		EstimatedArrivalAt:   m.EstimatedArrivalAt,
		CreatedAt:            m.CreatedAt,
	}
}
