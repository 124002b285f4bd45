package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
)

// LedgerEvent is an append-only mirror of a payout credit or debit.
type LedgerEvent struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MemberID  uuid.UUID             `gorm:"column:member_id;type:uuid;not null"`
	PayoutID  uuid.UUID             `gorm:"column:payout_id;type:uuid;not null"`
	Type      enums.LedgerEventType `gorm:"column:type;type:ledger_event_type_enum;not null"`
	Amount    decimal.Decimal       `gorm:"column:amount;type:numeric(14,2);not null"`
	Metadata  *string               `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
}
