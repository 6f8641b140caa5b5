package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resqlink/resqlink-backend/api/middleware"
	"github.com/resqlink/resqlink-backend/api/responses"
	"github.com/resqlink/resqlink-backend/api/validators"
	"github.com/resqlink/resqlink-backend/internal/dispatch"
	"github.com/resqlink/resqlink-backend/internal/providers"
	"github.com/resqlink/resqlink-backend/pkg/config"
	"github.com/resqlink/resqlink-backend/pkg/db/models"
	"github.com/resqlink/resqlink-backend/pkg/enums"
	pkgerrors "github.com/resqlink/resqlink-backend/pkg/errors"
	"github.com/resqlink/resqlink-backend/pkg/logger"
	"github.com/resqlink/resqlink-backend/pkg/pagination"
)

const deviceKeyHeader = "X-Device-Key"

type providerCreateRequest struct {
	Name             string          `json:"name" validate:"required,max=200"`
	Phone            string          `json:"phone" validate:"required,max=32"`
	Type             string          `json:"type" validate:"required"`
	Description      string          `json:"description" validate:"omitempty,max=2000"`
	BaseLat          float64         `json:"base_lat" validate:"min=-90,max=90"`
	BaseLng          float64         `json:"base_lng" validate:"min=-180,max=180"`
	CoverageRadiusKM float64         `json:"coverage_radius_km" validate:"omitempty,gt=0,lte=500"`
	CalloutFee       decimal.Decimal `json:"callout_fee"`
	PerKMRate        decimal.Decimal `json:"per_km_rate"`
}

func (r providerCreateRequest) toParams(firmID uuid.UUID) (providers.CreateParams, error) {
	providerType, err := enums.ParseProviderType(strings.TrimSpace(r.Type))
	if err != nil {
		return providers.CreateParams{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid provider type")
	}
	return providers.CreateParams{
		FirmID:           firmID,
		Name:             strings.TrimSpace(r.Name),
		Phone:            strings.TrimSpace(r.Phone),
		Type:             providerType,
		Description:      strings.TrimSpace(r.Description),
		BaseLat:          r.BaseLat,
		BaseLng:          r.BaseLng,
		CoverageRadiusKM: r.CoverageRadiusKM,
		CalloutFee:       r.CalloutFee,
		PerKMRate:        r.PerKMRate,
	}, nil
}

// ProviderCreate provisions a response unit under a firm. The one-time device
// key is returned in this response and never again.
func ProviderCreate(svc *providers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "provider service unavailable"))
			return
		}

		firmID, err := firmScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload providerCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := payload.toParams(firmID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, deviceKey, err := svc.Create(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := providerCreateResponse{
			providerResponse: providerResponseFromModel(created),
			DeviceKey:        deviceKey,
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// ProviderList returns the firm's provider directory.
func ProviderList(svc *providers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "provider service unavailable"))
			return
		}

		firmID, err := firmScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := providers.ListQuery{FirmID: firmID}

		if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
			providerType, parseErr := enums.ParseProviderType(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid type filter"))
				return
			}
			params.Type = &providerType
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := enums.ParseProviderStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter"))
				return
			}
			params.Status = &status
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("active")); raw != "" {
			switch raw {
			case "true":
				active := true
				params.Active = &active
			case "false":
				active := false
				params.Active = &active
			default:
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "active filter must be true or false"))
				return
			}
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

		items := make([]providerResponse, 0, len(list))
		for i := range list {
			items = append(items, providerResponseFromModel(&list[i]))
		}
		result := providerListResponse{Providers: items}
		if next != nil {
			encoded := pagination.EncodeCursor(*next)
			result.NextCursor = &encoded
		}

		responses.WriteSuccess(w, result)
	}
}

// ProviderGet returns a single provider scoped to the caller's firm.
func ProviderGet(svc *providers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "provider service unavailable"))
			return
		}

		provider, err := loadFirmProvider(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, providerResponseFromModel(provider))
	}
}

type providerUpdateRequest struct {
	Name             *string          `json:"name" validate:"omitempty,max=200"`
	Phone            *string          `json:"phone" validate:"omitempty,max=32"`
	Type             *string          `json:"type"`
	Status           *string          `json:"status"`
	Description      *string          `json:"description" validate:"omitempty,max=2000"`
	CoverageRadiusKM *float64         `json:"coverage_radius_km" validate:"omitempty,gt=0,lte=500"`
	CalloutFee       *decimal.Decimal `json:"callout_fee"`
	PerKMRate        *decimal.Decimal `json:"per_km_rate"`
}

func (r providerUpdateRequest) toParams() (providers.UpdateParams, error) {
	params := providers.UpdateParams{
		Name:             r.Name,
		Phone:            r.Phone,
		Description:      r.Description,
		CoverageRadiusKM: r.CoverageRadiusKM,
		CalloutFee:       r.CalloutFee,
		PerKMRate:        r.PerKMRate,
	}
	if r.Type != nil {
		providerType, err := enums.ParseProviderType(strings.TrimSpace(*r.Type))
		if err != nil {
			return providers.UpdateParams{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid provider type")
		}
		params.Type = &providerType
	}
	if r.Status != nil {
		status, err := enums.ParseProviderStatus(strings.TrimSpace(*r.Status))
		if err != nil {
			return providers.UpdateParams{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid provider status")
		}
		params.Status = &status
	}
	return params, nil
}

// ProviderUpdate applies a partial update to a provider.
func ProviderUpdate(svc *providers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "provider service unavailable"))
			return
		}

		provider, err := loadFirmProvider(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload providerUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := payload.toParams()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Update(r.Context(), provider.ID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, providerResponseFromModel(updated))
	}
}

// ProviderDeactivate retires a provider. Providers holding an open assignment
// cannot be retired until the assignment closes.
func ProviderDeactivate(svc *providers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "provider service unavailable"))
			return
		}

		provider, err := loadFirmProvider(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Deactivate(r.Context(), provider.ID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

type providerLocationRequest struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`
}

// ProviderLocation records a location ping from a provider device. Devices
// authenticate with the provider's one-time key, not a user token.
func ProviderLocation(svc *providers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "provider service unavailable"))
			return
		}

		providerID, err := parseUUIDParam(r, "providerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deviceKey := strings.TrimSpace(r.Header.Get(deviceKeyHeader))
		if deviceKey == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "device key required"))
			return
		}
		if err := svc.AuthenticateDevice(r.Context(), providerID, deviceKey); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload providerLocationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RecordLocation(r.Context(), providerID, payload.Lat, payload.Lng); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "recorded"})
	}
}

// ProvidersNearest ranks available providers around a point for dispatch.
// Results are scoped to the caller's firm.
func ProvidersNearest(svc *dispatch.Service, cfg config.DispatchConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch service unavailable"))
			return
		}

		firmID, err := firmIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lat, err := validators.ParseQueryFloat(r, "lat")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lng, err := validators.ParseQueryFloat(r, "lng")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		providerType, err := enums.ParseProviderType(strings.TrimSpace(r.URL.Query().Get("type")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid provider type"))
			return
		}

		maxKM, err := validators.ParseQueryFloatDefault(r, "max_km", cfg.DefaultSearchKM)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", cfg.DefaultSearchLimit, 1, 50)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		candidates, err := svc.FindNearest(r.Context(), dispatch.NearestQuery{
			Lat:           lat,
			Lng:           lng,
			ProviderType:  providerType,
			MaxDistanceKM: maxKM,
			Limit:         limit,
			FirmID:        &firmID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, nearestResponse{Candidates: candidates})
	}
}

type nearestResponse struct {
	Candidates []dispatch.Candidate `json:"candidates"`
}

type providerListResponse struct {
	Providers  []providerResponse `json:"providers"`
	NextCursor *string            `json:"next_cursor,omitempty"`
}

type providerCreateResponse struct {
	providerResponse
	DeviceKey string `json:"device_key"`
}

type providerResponse struct {
	ID               uuid.UUID            `json:"id"`
	FirmID           uuid.UUID            `json:"firm_id"`
	Name             string               `json:"name"`
	Phone            string               `json:"phone"`
	Type             enums.ProviderType   `json:"type"`
	Status           enums.ProviderStatus `json:"status"`
	Active           bool                 `json:"active"`
	Description      string               `json:"description,omitempty"`
	BaseLat          float64              `json:"base_lat"`
	BaseLng          float64              `json:"base_lng"`
	CurrentLat       float64              `json:"current_lat"`
	CurrentLng       float64              `json:"current_lng"`
	CoverageRadiusKM float64              `json:"coverage_radius_km"`
	CalloutFee       decimal.Decimal      `json:"callout_fee"`
	PerKMRate        decimal.Decimal      `json:"per_km_rate"`
	LastLocationAt   *time.Time           `json:"last_location_at,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

func providerResponseFromModel(m *models.Provider) providerResponse {
	return providerResponse{
		ID:               m.ID,
		FirmID:           m.FirmID,
		Name:             m.Name,
		Phone:            m.Phone,
		Type:             m.Type,
		Status:           m.Status,
		Active:           m.Active,
		Description:      m.Description,
		BaseLat:          m.BaseLat,
		BaseLng:          m.BaseLng,
		CurrentLat:       m.CurrentLat,
		CurrentLng:       m.CurrentLng,
		CoverageRadiusKM: m.CoverageRadiusKM,
		CalloutFee:       m.CalloutFee,
		PerKMRate:        m.PerKMRate,
		LastLocationAt:   m.LastLocationAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// firmScope resolves the firm a provider operation acts on. Admins may act on
// any firm named in the path; operators are pinned to their own firm.
func firmScope(r *http.Request) (uuid.UUID, error) {
	pathFirmID, err := parseUUIDParam(r, "firmId")
	if err != nil {
		return uuid.Nil, err
	}

	if middleware.RoleFromContext(r.Context()) == string(enums.ActorRoleAdmin) {
		return pathFirmID, nil
	}

	claimFirmID, err := firmIDFromContext(r)
	if err != nil {
		return uuid.Nil, err
	}
	if claimFirmID != pathFirmID {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "firm scope mismatch")
	}
	return pathFirmID, nil
}

// loadFirmProvider fetches the path provider and enforces firm ownership.
// Admins bypass the ownership check.
func loadFirmProvider(r *http.Request, svc *providers.Service) (*models.Provider, error) {
	providerID, err := parseUUIDParam(r, "providerId")
	if err != nil {
		return nil, err
	}

	provider, err := svc.Get(r.Context(), providerID)
	if err != nil {
		return nil, err
	}

	if middleware.RoleFromContext(r.Context()) != string(enums.ActorRoleAdmin) {
		firmID, err := firmIDFromContext(r)
		if err != nil {
			return nil, err
		}
		if provider.FirmID != firmID {
			return nil, pkgerrors.New(pkgerrors.CodeProviderNotFound, "provider not found")
		}
	}

	return provider, nil
}
