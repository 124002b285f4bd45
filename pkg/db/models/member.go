package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
)

// Member is the compensation profile of a registered distributor. The binary
// pointers mirror the member's TreeNode.
type Member struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name              string             `gorm:"column:name;type:text;not null"`
	Status            enums.MemberStatus `gorm:"column:status;type:member_status;not null"`
	SponsorID         *uuid.UUID         `gorm:"column:sponsor_id;type:uuid"`
	PreferredSide     enums.Side         `gorm:"column:preferred_side;type:tree_side;not null"`
	ParentID          *uuid.UUID         `gorm:"column:parent_id;type:uuid"`
	PlacementSide     *enums.Side        `gorm:"column:placement_side;type:tree_side"`
	LeftID            *uuid.UUID         `gorm:"column:left_id;type:uuid"`
	RightID           *uuid.UUID         `gorm:"column:right_id;type:uuid"`
	PersonalVolume    decimal.Decimal    `gorm:"column:personal_volume;type:numeric(14,2);not null;default:0"`
	BusinessVolume    decimal.Decimal    `gorm:"column:business_volume;type:numeric(14,2);not null;default:0"`
	Club              enums.Club         `gorm:"column:club;type:member_club;not null"`
	Rank              int                `gorm:"column:rank;not null;default:0"`
	InfinitySponsorID *uuid.UUID         `gorm:"column:infinity_sponsor_id;type:uuid"`
	ReferralCount     int                `gorm:"column:referral_count;not null;default:0"`
	FirstOrderAt      *time.Time         `gorm:"column:first_order_at;type:timestamptz"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// MemberReferral is one entry of a sponsor's ordered referral list.
// Position is 1-based and unique per sponsor.
type MemberReferral struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SponsorID  uuid.UUID `gorm:"column:sponsor_id;type:uuid;not null"`
	ReferredID uuid.UUID `gorm:"column:referred_id;type:uuid;not null"`
	Position   int       `gorm:"column:position;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
