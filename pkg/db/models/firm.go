package models

import (
	"time"

	"github.com/google/uuid"
)

// Firm is a security company operating coverage areas and a provider fleet.
type Firm struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string         `gorm:"column:name;not null"`
	ContactPhone  string         `gorm:"column:contact_phone;not null"`
	ContactEmail  *string        `gorm:"column:contact_email"`
	Priority      int            `gorm:"column:priority;not null;default:100"`
	Active        bool           `gorm:"column:active;not null;default:true"`
	CoverageAreas []CoverageArea `gorm:"foreignKey:FirmID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
