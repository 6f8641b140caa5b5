package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/resqlink/resqlink-backend/pkg/geo"
)

// CoverageArea is a named polygon a firm is willing to dispatch into.
// The boundary ring is stored as ordered lat/lng vertices.
type CoverageArea struct {
	ID        uuid.UUID   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FirmID    uuid.UUID   `gorm:"column:firm_id;type:uuid;not null;index"`
	Name      string      `gorm:"column:name;not null"`
	Boundary  []geo.Point `gorm:"column:boundary;type:jsonb;serializer:json;not null"`
	Priority  int         `gorm:"column:priority;not null;default:100"`
	Active    bool        `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}
