package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resqlink/resqlink-backend/pkg/enums"
)

// Provider is a dispatchable response unit owned by a firm. CurrentLat/Lng
// track the latest location ping; BaseLat/Lng never change after provisioning.
type Provider struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FirmID           uuid.UUID            `gorm:"column:firm_id;type:uuid;not null;index"`
	Name             string               `gorm:"column:name;not null"`
	Phone            string               `gorm:"column:phone;not null"`
	Type             enums.ProviderType   `gorm:"column:type;type:text;not null"`
	Status           enums.ProviderStatus `gorm:"column:status;type:text;not null;default:'offline'"`
	Active           bool                 `gorm:"column:active;not null;default:true"`
	Description      string               `gorm:"column:description"`
	BaseLat          float64              `gorm:"column:base_lat;not null"`
	BaseLng          float64              `gorm:"column:base_lng;not null"`
	CurrentLat       float64              `gorm:"column:current_lat;not null"`
	CurrentLng       float64              `gorm:"column:current_lng;not null"`
	CoverageRadiusKM float64              `gorm:"column:coverage_radius_km;not null;default:30"`
	CalloutFee       decimal.Decimal      `gorm:"column:callout_fee;type:numeric(12,2);not null;default:0"`
	PerKMRate        decimal.Decimal      `gorm:"column:per_km_rate;type:numeric(12,2);not null;default:0"`
	DeviceKeyHash    string               `gorm:"column:device_key_hash;not null"`
	LastLocationAt   *time.Time           `gorm:"column:last_location_at"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// ProviderAssignment binds a provider to a request. Partial unique indexes
// on (provider_id) and (request_id) where status is open enforce the
// one-open-assignment contract at the storage layer.
type ProviderAssignment struct {
	ID                   uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProviderID           uuid.UUID              `gorm:"column:provider_id;type:uuid;not null;index"`
	RequestID            uuid.UUID              `gorm:"column:request_id;type:uuid;not null;index"`
	Status               enums.AssignmentStatus `gorm:"column:status;type:text;not null;default:'assigned'"`
	DistanceKM           float64                `gorm:"column:distance_km;not null"`
	EstimatedDurationMin float64                `gorm:"column:estimated_duration_min;not null"`
	EstimatedFee         decimal.Decimal        `gorm:"column:estimated_fee;type:numeric(12,2);not null;default:0"`
	AssignedAt           time.Time              `gorm:"column:assigned_at;not null"`
	EstimatedArrivalAt   *time.Time             `gorm:"column:estimated_arrival_at"`
	EnRouteAt            *time.Time             `gorm:"column:en_route_at"`
	ArrivedAt            *time.Time             `gorm:"column:arrived_at"`
	CompletedAt          *time.Time             `gorm:"column:completed_at"`
	CancelledAt          *time.Time             `gorm:"column:cancelled_at"`
	CreatedAt            time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
