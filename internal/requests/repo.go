package requests

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

// Repository handles panic request persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.PanicRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PanicRequest, error)
	FindByIDWithLog(ctx context.Context, id uuid.UUID) (*models.PanicRequest, error)
	Update(ctx context.Context, request *models.PanicRequest) error
	AppendStatusUpdate(ctx context.Context, update *models.RequestStatusUpdate) error
	List(ctx context.Context, params ListQuery) ([]models.PanicRequest, *pagination.Cursor, error)
	ListStalePending(ctx context.Context, cutoff time.Time) ([]models.PanicRequest, error)
	MarkEscalated(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ListQuery configures panic request listing. Exactly one of GroupID or
// FirmID scopes the result set.
type ListQuery struct {
	GroupID *uuid.UUID
	FirmID  *uuid.UUID
	Status  *enums.RequestStatus
	Limit   int
	Cursor  *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a panic request repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.PanicRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PanicRequest, error) {
	return r.find(ctx, id, false)
}

func (r *repository) FindByIDWithLog(ctx context.Context, id uuid.UUID) (*models.PanicRequest, error) {
	return r.find(ctx, id, true)
}

func (r *repository) find(ctx context.Context, id uuid.UUID, withLog bool) (*models.PanicRequest, error) {
	query := r.db.WithContext(ctx)
	if withLog {
		query = query.Preload("StatusLog", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		})
	}
	var request models.PanicRequest
	if err := query.Where("id = ?", id).First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

func (r *repository) Update(ctx context.Context, request *models.PanicRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

func (r *repository) AppendStatusUpdate(ctx context.Context, update *models.RequestStatusUpdate) error {
	return r.db.WithContext(ctx).Create(update).Error
}

func (r *repository) List(ctx context.Context, params ListQuery) ([]models.PanicRequest, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.PanicRequest{})
	if params.GroupID != nil {
		query = query.Where("group_id = ?", *params.GroupID)
	}
	if params.FirmID != nil {
		query = query.Where("firm_id = ?", *params.FirmID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var requests []models.PanicRequest
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&requests).Error; err != nil {
		return nil, nil, err
	}

	if len(requests) > limit {
		next := requests[limit]
		requests = requests[:limit]
		return requests, &pagination.Cursor{
			CreatedAt: next.CreatedAt,
			ID:        next.ID,
		}, nil
	}

	return requests, nil, nil
}

func (r *repository) ListStalePending(ctx context.Context, cutoff time.Time) ([]models.PanicRequest, error) {
	var requests []models.PanicRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND escalated_at IS NULL AND created_at < ?", enums.RequestStatusPending, cutoff).
		Order("created_at ASC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repository) MarkEscalated(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PanicRequest{}).
		Where("id = ? AND escalated_at IS NULL", id).
		Update("escalated_at", at).Error
}
