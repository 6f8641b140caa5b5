package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/resqlink/resqlink-backend/pkg/enums"
)

// PanicRequest is the system's audit record of an emergency submission.
// Rows are never deleted; status moves only through the lifecycle service.
type PanicRequest struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupID     uuid.UUID             `gorm:"column:group_id;type:uuid;not null;index"`
	FirmID      uuid.UUID             `gorm:"column:firm_id;type:uuid;not null;index"`
	Phone       string                `gorm:"column:phone;not null;index"`
	ServiceType enums.ServiceType     `gorm:"column:service_type;type:text;not null"`
	Status      enums.RequestStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	Lat         float64               `gorm:"column:lat;not null"`
	Lng         float64               `gorm:"column:lng;not null"`
	Address     string                `gorm:"column:address"`
	Description string                `gorm:"column:description"`
	EscalatedAt *time.Time            `gorm:"column:escalated_at"`
	AcceptedAt  *time.Time            `gorm:"column:accepted_at"`
	CompletedAt *time.Time            `gorm:"column:completed_at"`
	CancelledAt *time.Time            `gorm:"column:cancelled_at"`
	StatusLog   []RequestStatusUpdate `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
	Assignments []ProviderAssignment  `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// RequestStatusUpdate is an append-only audit row written on every transition.
type RequestStatusUpdate struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RequestID uuid.UUID            `gorm:"column:request_id;type:uuid;not null;index"`
	OldStatus *enums.RequestStatus `gorm:"column:old_status;type:text"`
	NewStatus enums.RequestStatus  `gorm:"column:new_status;type:text;not null"`
	Message   *string              `gorm:"column:message"`
	Actor     string               `gorm:"column:actor;not null"`
	Lat       *float64             `gorm:"column:lat"`
	Lng       *float64             `gorm:"column:lng"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
}
