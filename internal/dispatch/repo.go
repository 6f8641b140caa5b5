package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/resqlink/resqlink-backend/pkg/db/models"
	"github.com/resqlink/resqlink-backend/pkg/enums"
)

var openAssignmentStatuses = []enums.AssignmentStatus{
	enums.AssignmentStatusAssigned,
	enums.AssignmentStatusEnRoute,
	enums.AssignmentStatusArrived,
}

// Repository handles matcher and assignment persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListAvailableCandidates(ctx context.Context, providerType enums.ProviderType, firmID *uuid.UUID) ([]models.Provider, error)
	FindProviderByID(ctx context.Context, id uuid.UUID) (*models.Provider, error)
	FindRequestByID(ctx context.Context, id uuid.UUID) (*models.PanicRequest, error)
	FindOpenAssignmentByRequest(ctx context.Context, requestID uuid.UUID) (*models.ProviderAssignment, error)
	CreateAssignment(ctx context.Context, assignment *models.ProviderAssignment) error
	UpdateAssignment(ctx context.Context, assignment *models.ProviderAssignment) error
	ClaimProvider(ctx context.Context, providerID uuid.UUID) (bool, error)
	ReleaseProvider(ctx context.Context, providerID uuid.UUID) (bool, error)
	MarkAssignmentProgress(ctx context.Context, assignmentID uuid.UUID, status enums.AssignmentStatus, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a dispatch repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListAvailableCandidates(ctx context.Context, providerType enums.ProviderType, firmID *uuid.UUID) ([]models.Provider, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Provider{}).
		Where("type = ? AND status = ? AND active = true", providerType, enums.ProviderStatusAvailable)
	if firmID != nil {
		query = query.Where("firm_id = ?", *firmID)
	}
	var providers []models.Provider
	if err := query.Find(&providers).Error; err != nil {
		return nil, err
	}
	return providers, nil
}

func (r *repository) FindProviderByID(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
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

func (r *repository) FindRequestByID(ctx context.Context, id uuid.UUID) (*models.PanicRequest, error) {
	var request models.PanicRequest
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindOpenAssignmentByRequest(ctx context.Context, requestID uuid.UUID) (*models.ProviderAssignment, error) {
	var assignment models.ProviderAssignment
	if err := r.db.WithContext(ctx).
		Where("request_id = ? AND status IN (?)", requestID, openAssignmentStatuses).
		First(&assignment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) CreateAssignment(ctx context.Context, assignment *models.ProviderAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *repository) UpdateAssignment(ctx context.Context, assignment *models.ProviderAssignment) error {
	return r.db.WithContext(ctx).Save(assignment).Error
}

// ClaimProvider flips available -> busy with a conditional update; the
// affected-row count decides the race.
func (r *repository) ClaimProvider(ctx context.Context, providerID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Provider{}).
		Where("id = ? AND status = ?", providerID, enums.ProviderStatusAvailable).
		Update("status", enums.ProviderStatusBusy)
	return result.RowsAffected == 1, result.Error
}

// ReleaseProvider is the inverse CAS, busy -> available.
func (r *repository) ReleaseProvider(ctx context.Context, providerID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Provider{}).
		Where("id = ? AND status = ?", providerID, enums.ProviderStatusBusy).
		Update("status", enums.ProviderStatusAvailable)
	return result.RowsAffected == 1, result.Error
}

func (r *repository) MarkAssignmentProgress(ctx context.Context, assignmentID uuid.UUID, status enums.AssignmentStatus, at time.Time) error {
	updates := map[string]any{"status": status}
	switch status {
	case enums.AssignmentStatusEnRoute:
		updates["en_route_at"] = at
	case enums.AssignmentStatusArrived:
		updates["arrived_at"] = at
	case enums.AssignmentStatusCompleted:
		updates["completed_at"] = at
	case enums.AssignmentStatusCancelled:
		updates["cancelled_at"] = at
	}
	return r.db.WithContext(ctx).
		Model(&models.ProviderAssignment{}).
		Where("id = ?", assignmentID).
		Updates(updates).Error
}
