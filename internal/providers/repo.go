package providers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/resqlink/resqlink-backend/pkg/db/models"
	"github.com/resqlink/resqlink-backend/pkg/enums"
	"github.com/resqlink/resqlink-backend/pkg/pagination"
)

// Repository handles provider persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, provider *models.Provider) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Provider, error)
	Update(ctx context.Context, provider *models.Provider) error
	UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64, at time.Time) error
	List(ctx context.Context, params ListQuery) ([]models.Provider, *pagination.Cursor, error)
	DeactivateIfIdle(ctx context.Context, providerID uuid.UUID) (bool, error)
	ListStaleAvailable(ctx context.Context, cutoff time.Time) ([]models.Provider, error)
	MarkOffline(ctx context.Context, id uuid.UUID) error
}

// ListQuery configures provider directory queries.
type ListQuery struct {
	FirmID uuid.UUID
	Type   *enums.ProviderType
	Status *enums.ProviderStatus
	Active *bool
	Limit  int
	Cursor *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a provider repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, provider *models.Provider) error {
	return r.db.WithContext(ctx).Create(provider).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	var provider models.Provider
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&provider).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &provider, nil
}

func (r *repository) Update(ctx context.Context, provider *models.Provider) error {
	return r.db.WithContext(ctx).Save(provider).Error
}

func (r *repository) UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Provider{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"current_lat":      lat,
			"current_lng":      lng,
			"last_location_at": at,
		}).Error
}

func (r *repository) List(ctx context.Context, params ListQuery) ([]models.Provider, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Provider{}).Where("firm_id = ?", params.FirmID)
	if params.Type != nil {
		query = query.Where("type = ?", *params.Type)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Active != nil {
		query = query.Where("active = ?", *params.Active)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var providers []models.Provider
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&providers).Error; err != nil {
		return nil, nil, err
	}

	if len(providers) > limit {
		next := providers[limit]
		providers = providers[:limit]
		return providers, &pagination.Cursor{
			CreatedAt: next.CreatedAt,
			ID:        next.ID,
		}, nil
	}

	return providers, nil, nil
}

// ListStaleAvailable finds providers still marked available whose device has
// gone silent past the cutoff. Providers that never pinged fall back to their
// last row update.
func (r *repository) ListStaleAvailable(ctx context.Context, cutoff time.Time) ([]models.Provider, error) {
	var providers []models.Provider
	err := r.db.WithContext(ctx).
		Where("status = ? AND active = true", enums.ProviderStatusAvailable).
		Where("(last_location_at < ? OR (last_location_at IS NULL AND updated_at < ?))", cutoff, cutoff).
		Order("last_location_at ASC").
		Find(&providers).Error
	if err != nil {
		return nil, err
	}
	return providers, nil
}

// MarkOffline flips the provider offline only while it is still available, so
// a sweep never clobbers a concurrent claim.
func (r *repository) MarkOffline(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Provider{}).
		Where("id = ? AND status = ?", id, enums.ProviderStatusAvailable).
		Update("status", enums.ProviderStatusOffline).Error
}

var openAssignmentStatuses = []enums.AssignmentStatus{
	enums.AssignmentStatusAssigned,
	enums.AssignmentStatusEnRoute,
	enums.AssignmentStatusArrived,
}

// DeactivateIfIdle retires the provider in one conditional statement: never
// while busy, never with an open assignment on record. A claim landing
// concurrently flips the status to busy first, so the WHERE re-check loses the
// race for the deactivation instead of orphaning the assignment.
func (r *repository) DeactivateIfIdle(ctx context.Context, providerID uuid.UUID) (bool, error) {
	openAssignments := r.db.
		Model(&models.ProviderAssignment{}).
		Select("1").
		Where("provider_id = ? AND status IN (?)", providerID, openAssignmentStatuses)
	result := r.db.WithContext(ctx).
		Model(&models.Provider{}).
		Where("id = ? AND status <> ?", providerID, enums.ProviderStatusBusy).
		Where("NOT EXISTS (?)", openAssignments).
		Updates(map[string]any{
			"active": false,
			"status": enums.ProviderStatusOffline,
		})
	return result.RowsAffected == 1, result.Error
}
