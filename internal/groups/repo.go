package groups

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/resqlink/resqlink-backend/pkg/db/models"
	"github.com/resqlink/resqlink-backend/pkg/enums"
)

// Repository handles group and membership persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindGroupByID(ctx context.Context, id uuid.UUID) (*models.Group, error)
	FindActiveMember(ctx context.Context, groupID uuid.UUID, phone string) (*models.GroupMember, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a groups repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindGroupByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

func (r *repository) FindActiveMember(ctx context.Context, groupID uuid.UUID, phone string) (*models.GroupMember, error) {
	var member models.GroupMember
	if err := r.db.WithContext(ctx).
		Where("group_id = ? AND phone = ? AND status = ?", groupID, phone, enums.GroupMemberStatusActive).
		First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}
