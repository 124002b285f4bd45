package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/angelmondragon/binarycomp-backend/pkg/db/types"
)

// RankQualification records the (left, right) referral pair consumed to grant
// Level to MemberID. Rows are never updated except for BonusPaidAt.
type RankQualification struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MemberID        uuid.UUID  `gorm:"column:member_id;type:uuid;not null"`
	Level           int        `gorm:"column:level;not null"`
	LeftReferralID  uuid.UUID  `gorm:"column:left_referral_id;type:uuid;not null"`
	RightReferralID uuid.UUID  `gorm:"column:right_referral_id;type:uuid;not null"`
	BonusPaidAt     *time.Time `gorm:"column:bonus_paid_at;type:timestamptz"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// RankPool is the current set of classified but unpaired paid directs.
type RankPool struct {
	MemberID  uuid.UUID         `gorm:"column:member_id;type:uuid;primaryKey"`
	LeftIDs   dbtypes.UUIDArray `gorm:"column:left_ids;type:uuid[];not null"`
	RightIDs  dbtypes.UUIDArray `gorm:"column:right_ids;type:uuid[];not null"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
