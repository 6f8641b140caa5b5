package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resqlink/resqlink-backend/pkg/enums"
)

// Subscription is the read-model of the billing subsystem's plan record.
// Dispatch only consults status and period bounds; purchase and renewal
// flows live elsewhere.
type Subscription struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupID            uuid.UUID                `gorm:"column:group_id;type:uuid;not null;index"`
	FirmID             uuid.UUID                `gorm:"column:firm_id;type:uuid;not null;index"`
	PlanName           string                   `gorm:"column:plan_name;not null"`
	MonthlyPrice       decimal.Decimal          `gorm:"column:monthly_price;type:numeric(12,2);not null"`
	Status             enums.SubscriptionStatus `gorm:"column:status;type:text;not null;default:'active'"`
	CurrentPeriodStart time.Time                `gorm:"column:current_period_start;not null"`
	CurrentPeriodEnd   time.Time                `gorm:"column:current_period_end;not null"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
