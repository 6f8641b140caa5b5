package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/resqlink/resqlink-backend/api/middleware"
	"github.com/resqlink/resqlink-backend/api/responses"
	"github.com/resqlink/resqlink-backend/api/validators"
	"github.com/resqlink/resqlink-backend/internal/requests"
	"github.com/resqlink/resqlink-backend/pkg/db/models"
	"github.com/resqlink/resqlink-backend/pkg/enums"
	pkgerrors "github.com/resqlink/resqlink-backend/pkg/errors"
	"github.com/resqlink/resqlink-backend/pkg/logger"
	"github.com/resqlink/resqlink-backend/pkg/pagination"
)

type panicSubmitRequest struct {
	ServiceType string  `json:"service_type" validate:"required"`
	Lat         float64 `json:"lat" validate:"min=-90,max=90"`
	Lng         float64 `json:"lng" validate:"min=-180,max=180"`
	Description string  `json:"description" validate:"omitempty,max=2000"`
	Address     string  `json:"address" validate:"omitempty,max=500"`
}

func (r panicSubmitRequest) toParams(groupID uuid.UUID, phone string) (requests.SubmitParams, error) {
	serviceType, err := enums.ParseServiceType(strings.TrimSpace(r.ServiceType))
	if err != nil {
		return requests.SubmitParams{}, pkgerrors.New(pkgerrors.CodeInvalidServiceType, "invalid service type")
	}
	return requests.SubmitParams{
		GroupID:     groupID,
		Phone:       phone,
		ServiceType: serviceType,
		Lat:         r.Lat,
		Lng:         r.Lng,
		Description: strings.TrimSpace(r.Description),
		Address:     strings.TrimSpace(r.Address),
	}, nil
}

// PanicSubmit handles a member raising an emergency request. The group and
// phone come from the authenticated session, never from the body.
func PanicSubmit(svc *requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "request service unavailable"))
			return
		}

		groupID, err := groupIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		phone := middleware.PhoneFromContext(r.Context())
		if phone == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "phone context missing"))
			return
		}

		var payload panicSubmitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := payload.toParams(groupID, phone)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Submit(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, panicResponseFromModel(created))
	}
}

// PanicGet returns a single request with its audit trail. Members only see
// requests raised by their own group.
func PanicGet(svc *requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "request service unavailable"))
			return
		}

		requestID, err := parseUUIDParam(r, "panicId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Get(r.Context(), requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if middleware.RoleFromContext(r.Context()) == string(enums.ActorRoleMember) {
			if middleware.GroupIDFromContext(r.Context()) != request.GroupID.String() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRequestNotFound, "panic request not found"))
				return
			}
		}

		responses.WriteSuccess(w, panicResponseFromModel(request))
	}
}

// PanicList pages through requests. Members are scoped to their group; firm
// operators and admins are scoped to their firm.
func PanicList(svc *requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "request service unavailable"))
			return
		}

		params := requests.ListQuery{}
		switch middleware.RoleFromContext(r.Context()) {
		case string(enums.ActorRoleMember):
			groupID, err := groupIDFromContext(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			params.GroupID = &groupID
		default:
			firmID, err := firmIDFromContext(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			params.FirmID = &firmID
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseRequestStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter"))
				return
			}
			params.Status = &status
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Limit = limit

		cursor, err := pagination.ParseCursor(strings.TrimSpace(r.URL.Query().Get("cursor")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}
		params.Cursor = cursor

		list, next, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]panicResponse, 0, len(list))
		for i := range list {
			items = append(items, panicResponseFromModel(&list[i]))
		}
		result := panicListResponse{Requests: items}
		if next != nil {
			encoded := pagination.EncodeCursor(*next)
			result.NextCursor = &encoded
		}

		responses.WriteSuccess(w, result)
	}
}

type panicTransitionRequest struct {
	NewStatus string   `json:"new_status" validate:"required"`
	Message   *string  `json:"message" validate:"omitempty,max=2000"`
	Lat       *float64 `json:"lat" validate:"omitempty,min=-90,max=90"`
	Lng       *float64 `json:"lng" validate:"omitempty,min=-180,max=180"`
}

// PanicTransition applies one lifecycle step to a request on behalf of a firm
// operator or admin.
func PanicTransition(svc *requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "request service unavailable"))
			return
		}

		requestID, err := parseUUIDParam(r, "panicId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload panicTransitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		newStatus, err := enums.ParseRequestStatus(strings.TrimSpace(payload.NewStatus))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid request status"))
			return
		}

		actor := actorFromContext(r)
		if actor == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		firmScope, err := claimFirmScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.TransitionStatus(r.Context(), requests.TransitionParams{
			RequestID: requestID,
			NewStatus: newStatus,
			Actor:     actor,
			Message:   payload.Message,
			Lat:       payload.Lat,
			Lng:       payload.Lng,
			FirmScope: firmScope,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, panicResponseFromModel(updated))
	}
}

type panicListResponse struct {
	Requests   []panicResponse `json:"requests"`
	NextCursor *string         `json:"next_cursor,omitempty"`
}

type panicResponse struct {
	ID          uuid.UUID              `json:"id"`
	GroupID     uuid.UUID              `json:"group_id"`
	FirmID      uuid.UUID              `json:"firm_id"`
	Phone       string                 `json:"phone"`
	ServiceType enums.ServiceType      `json:"service_type"`
	Status      enums.RequestStatus    `json:"status"`
	Lat         float64                `json:"lat"`
	Lng         float64                `json:"lng"`
	Address     string                 `json:"address,omitempty"`
	Description string                 `json:"description,omitempty"`
	EscalatedAt *time.Time             `json:"escalated_at,omitempty"`
	AcceptedAt  *time.Time             `json:"accepted_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	CancelledAt *time.Time             `json:"cancelled_at,omitempty"`
	StatusLog   []statusUpdateResponse `json:"status_log,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

type statusUpdateResponse struct {
	ID        uuid.UUID            `json:"id"`
	OldStatus *enums.RequestStatus `json:"old_status,omitempty"`
	NewStatus enums.RequestStatus  `json:"new_status"`
	Message   *string              `json:"message,omitempty"`
	Actor     string               `json:"actor"`
	Lat       *float64             `json:"lat,omitempty"`
	Lng       *float64             `json:"lng,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

func panicResponseFromModel(m *models.PanicRequest) panicResponse {
	resp := panicResponse{
		ID:          m.ID,
		GroupID:     m.GroupID,
		FirmID:      m.FirmID,
		Phone:       m.Phone,
		ServiceType: m.ServiceType,
		Status:      m.Status,
		Lat:         m.Lat,
		Lng:         m.Lng,
		Address:     m.Address,
		Description: m.Description,
		EscalatedAt: m.EscalatedAt,
		AcceptedAt:  m.AcceptedAt,
		CompletedAt: m.CompletedAt,
		CancelledAt: m.CancelledAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	for _, update := range m.StatusLog {
		resp.StatusLog = append(resp.StatusLog, statusUpdateResponse{
			ID:        update.ID,
			OldStatus: update.OldStatus,
			NewStatus: update.NewStatus,
			Message:   update.Message,
			Actor:     update.Actor,
			Lat:       update.Lat,
			Lng:       update.Lng,
			CreatedAt: update.CreatedAt,
		})
	}
	return resp
}

func actorFromContext(r *http.Request) string {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return ""
	}
	role := middleware.RoleFromContext(r.Context())
	if role == "" {
		return userID
	}
	return fmt.Sprintf("%s:%s", role, userID)
}

func groupIDFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.GroupIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "group context missing")
	}
	groupID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid group id")
	}
	return groupID, nil
}

// claimFirmScope pins non-admin callers to the firm in their claims. Admins
// act unscoped.
func claimFirmScope(r *http.Request) (*uuid.UUID, error) {
	if middleware.RoleFromContext(r.Context()) == string(enums.ActorRoleAdmin) {
		return nil, nil
	}
	firmID, err := firmIDFromContext(r)
	if err != nil {
		return nil, err
	}
	return &firmID, nil
}

func firmIDFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.FirmIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "firm context missing")
	}
	firmID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid firm id")
	}
	return firmID, nil
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
