package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/resqlink/resqlink-backend/pkg/enums"
)

// Group is a subscribed household or site with a registered location.
type Group struct {
	ID        uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string        `gorm:"column:name;not null"`
	Lat       float64       `gorm:"column:lat;not null"`
	Lng       float64       `gorm:"column:lng;not null"`
	Address   string        `gorm:"column:address;not null"`
	LockedAt  *time.Time    `gorm:"column:locked_at"`
	Members   []GroupMember `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// GroupMember binds a phone number to a group. Only verified, active members
// may raise panics on behalf of the group.
type GroupMember struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupID         uuid.UUID               `gorm:"column:group_id;type:uuid;not null;index"`
	Phone           string                  `gorm:"column:phone;not null;index"`
	FullName        string                  `gorm:"column:full_name;not null"`
	Status          enums.GroupMemberStatus `gorm:"column:status;type:text;not null;default:'active'"`
	PhoneVerifiedAt *time.Time              `gorm:"column:phone_verified_at"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
