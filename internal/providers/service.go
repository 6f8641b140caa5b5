package providers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resqlink/resqlink-backend/pkg/config"
	"github.com/resqlink/resqlink-backend/pkg/db/models"
	"github.com/resqlink/resqlink-backend/pkg/enums"
	pkgerrors "github.com/resqlink/resqlink-backend/pkg/errors"
	"github.com/resqlink/resqlink-backend/pkg/geo"
	"github.com/resqlink/resqlink-backend/pkg/pagination"
	"github.com/resqlink/resqlink-backend/pkg/security"
)

const deviceKeyLength = 40

// ServiceParams groups dependencies for the provider directory.
type ServiceParams struct {
	Repo      Repository
	DeviceKey config.DeviceKeyConfig
}

// Service manages a firm's response-unit fleet.
type Service struct {
	repo         Repository
	deviceKeyCfg config.DeviceKeyConfig
	now          func() time.Time
}

// NewService builds the provider directory service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	return &Service{repo: params.Repo, deviceKeyCfg: params.DeviceKey, now: time.Now}, nil
}

// CreateParams provisions a new provider under a firm.
type CreateParams struct {
	FirmID           uuid.UUID
	Name             string
	Phone            string
	Type             enums.ProviderType
	Description      string
	BaseLat          float64
	BaseLng          float64
	CoverageRadiusKM float64
	CalloutFee       decimal.Decimal
	PerKMRate        decimal.Decimal
}

// Create provisions the provider and issues its one-time device key. Only the
// Argon2id hash is stored; the plaintext key is returned exactly once.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Provider, string, error) {
	if strings.TrimSpace(params.Name) == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "provider name is required")
	}
	if strings.TrimSpace(params.Phone) == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "provider phone is required")
	}
	if !params.Type.IsValid() {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "invalid provider type")
	}
	if err := geo.ValidateCoordinates(params.BaseLat, params.BaseLng); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid base location")
	}
	if params.CoverageRadiusKM <= 0 {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "coverage radius must be positive")
	}

	deviceKey, err := security.GenerateDeviceKey(deviceKeyLength)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate device key")
	}
	hash, err := security.HashDeviceKey(deviceKey, s.deviceKeyCfg)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash device key")
	}

	provider := &models.Provider{
		FirmID:           params.FirmID,
		Name:             strings.TrimSpace(params.Name),
		Phone:            strings.TrimSpace(params.Phone),
		Type:             params.Type,
		Status:           enums.ProviderStatusOffline,
		Active:           true,
		Description:      params.Description,
		BaseLat:          params.BaseLat,
		BaseLng:          params.BaseLng,
		CurrentLat:       params.BaseLat,
		CurrentLng:       params.BaseLng,
		CoverageRadiusKM: params.CoverageRadiusKM,
		CalloutFee:       params.CalloutFee,
		PerKMRate:        params.PerKMRate,
		DeviceKeyHash:    hash,
	}
	if err := s.repo.Create(ctx, provider); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create provider")
	}
	return provider, deviceKey, nil
}

// Get returns the provider or provider_not_found.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	provider, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load provider")
	}
	if provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeProviderNotFound, "provider not found")
	}
	return provider, nil
}

// List pages through a firm's fleet with optional filters.
func (s *Service) List(ctx context.Context, params ListQuery) ([]models.Provider, *pagination.Cursor, error) {
	providers, cursor, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list providers")
	}
	return providers, cursor, nil
}

// UpdateParams carries the mutable provider fields. Base location is fixed
// at provisioning and never changes.
type UpdateParams struct {
	Name             *string
	Phone            *string
	Type             *enums.ProviderType
	Status           *enums.ProviderStatus
	Description      *string
	CoverageRadiusKM *float64
	CalloutFee       *decimal.Decimal
	PerKMRate        *decimal.Decimal
}

// Update applies the provided mutable fields.
func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*models.Provider, error) {
	provider, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		if strings.TrimSpace(*params.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider name cannot be empty")
		}
		provider.Name = strings.TrimSpace(*params.Name)
	}
	if params.Phone != nil {
		if strings.TrimSpace(*params.Phone) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider phone cannot be empty")
		}
		provider.Phone = strings.TrimSpace(*params.Phone)
	}
	if params.Type != nil {
		if !params.Type.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid provider type")
		}
		provider.Type = *params.Type
	}
	if params.Status != nil {
		if !params.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid provider status")
		}
		provider.Status = *params.Status
	}
	if params.Description != nil {
		provider.Description = *params.Description
	}
	if params.CoverageRadiusKM != nil {
		if *params.CoverageRadiusKM <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "coverage radius must be positive")
		}
		provider.CoverageRadiusKM = *params.CoverageRadiusKM
	}
	if params.CalloutFee != nil {
		provider.CalloutFee = *params.CalloutFee
	}
	if params.PerKMRate != nil {
		provider.PerKMRate = *params.PerKMRate
	}

	if err := s.repo.Update(ctx, provider); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update provider")
	}
	return provider, nil
}

// RecordLocation applies a device ping: narrow update of the current
// location and the last-seen timestamp.
func (s *Service) RecordLocation(ctx context.Context, id uuid.UUID, lat, lng float64) error {
	if err := geo.ValidateCoordinates(lat, lng); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid location")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.UpdateLocation(ctx, id, lat, lng, s.now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record location")
	}
	return nil
}

// Deactivate soft-deletes the provider. Refused while an open assignment
// still holds it; the guard and the write are one conditional update, so a
// concurrent claim cannot slip in between.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	provider, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !provider.Active {
		return nil
	}
	retired, err := s.repo.DeactivateIfIdle(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate provider")
	}
	if !retired {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "provider has an open assignment")
	}
	return nil
}

// AuthenticateDevice checks a location-ping credential against the stored hash.
func (s *Service) AuthenticateDevice(ctx context.Context, id uuid.UUID, deviceKey string) error {
	provider, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !provider.Active {
		return pkgerrors.New(pkgerrors.CodeForbidden, "provider is deactivated")
	}
	ok, err := security.VerifyDeviceKey(deviceKey, provider.DeviceKeyHash)
	if err != nil || !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid device key")
	}
	return nil
}
