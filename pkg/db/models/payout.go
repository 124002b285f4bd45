package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
)

// Payout is a computed bonus. Withdrawable, Reward, TaxWithheld and
// PlatformFee always sum to Gross; only Status and CompletedAt change after
// creation.
type Payout struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BeneficiaryID uuid.UUID          `gorm:"column:beneficiary_id;type:uuid;not null"`
	BonusType     enums.BonusType    `gorm:"column:bonus_type;type:bonus_type;not null"`
	Gross         decimal.Decimal    `gorm:"column:gross;type:numeric(14,2);not null"`
	Withdrawable  decimal.Decimal    `gorm:"column:withdrawable;type:numeric(14,2);not null"`
	Reward        decimal.Decimal    `gorm:"column:reward;type:numeric(14,2);not null"`
	TaxWithheld   decimal.Decimal    `gorm:"column:tax_withheld;type:numeric(14,2);not null"`
	PlatformFee   decimal.Decimal    `gorm:"column:platform_fee;type:numeric(14,2);not null"`
	Status        enums.PayoutStatus `gorm:"column:status;type:payout_status;not null"`
	SourceType    string             `gorm:"column:source_type;type:text;not null"`
	SourceID      uuid.UUID          `gorm:"column:source_id;type:uuid;not null"`
	WindowStart   time.Time          `gorm:"column:window_start;type:timestamptz;not null"`
	WindowEnd     time.Time          `gorm:"column:window_end;type:timestamptz;not null"`
	HoldReason    *string            `gorm:"column:hold_reason;type:text"`
	CompletedAt   *time.Time         `gorm:"column:completed_at;type:timestamptz"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
