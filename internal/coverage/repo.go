package coverage

import (
	"context"

	"gorm.io/gorm"

	"github.com/resqlink/resqlink-backend/pkg/db/models"
)

// Repository loads firms and their coverage polygons.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListActiveFirms(ctx context.Context) ([]models.Firm, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a coverage repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListActiveFirms(ctx context.Context) ([]models.Firm, error) {
	var firms []models.Firm
	if err := r.db.WithContext(ctx).
		Where("active = true").
		Preload("CoverageAreas", "active = true").
		Order("priority ASC, id ASC").
		Find(&firms).Error; err != nil {
		return nil, err
	}
	return firms, nil
}
