package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a member's payout destination and identity verification flag.
type Wallet struct {
	MemberID          uuid.UUID `gorm:"column:member_id;type:uuid;primaryKey"`
	PayoutDestination *string   `gorm:"column:payout_destination;type:text"`
	IdentityVerified  bool      `gorm:"column:identity_verified;not null;default:false"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
