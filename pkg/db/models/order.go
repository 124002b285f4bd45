package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
)

// Order is one purchase from the order feed. The *_bonus_paid_at columns are
// the processed flags guarding each bonus type against double payout.
type Order struct {
	ID                    uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PayerID               uuid.UUID         `gorm:"column:payer_id;type:uuid;not null"`
	ReferrerID            *uuid.UUID        `gorm:"column:referrer_id;type:uuid"`
	Amount                decimal.Decimal   `gorm:"column:amount;type:numeric(14,2);not null"`
	Volume                decimal.Decimal   `gorm:"column:volume;type:numeric(14,2);not null"`
	BusinessVolume        decimal.Decimal   `gorm:"column:business_volume;type:numeric(14,2);not null"`
	Status                enums.OrderStatus `gorm:"column:status;type:order_status;not null"`
	IsFirstOrder          bool              `gorm:"column:is_first_order;not null;default:false"`
	CompletedAt           *time.Time        `gorm:"column:completed_at;type:timestamptz"`
	DirectBonusPaidAt     *time.Time        `gorm:"column:direct_bonus_paid_at;type:timestamptz"`
	RepurchaseBonusPaidAt *time.Time        `gorm:"column:repurchase_bonus_paid_at;type:timestamptz"`
	InfinityBonusPaidAt   *time.Time        `gorm:"column:infinity_bonus_paid_at;type:timestamptz"`
	CreatedAt             time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
