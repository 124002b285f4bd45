package members

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/binarycomp-backend/internal/wallets"
	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
)

// RegisterInput is a new member joining under a sponsor.
type RegisterInput struct {
	Name          string
	SponsorID     *uuid.UUID
	Side          *enums.Side
	PreferredSide *enums.Side
}

// MemberDTO is the public view of a member record.
type MemberDTO struct {
	ID                uuid.UUID          `json:"id"`
	Name              string             `json:"name"`
	Status            enums.MemberStatus `json:"status"`
	SponsorID         *uuid.UUID         `json:"sponsor_id,omitempty"`
	PreferredSide     enums.Side         `json:"preferred_side"`
	ParentID          *uuid.UUID         `json:"parent_id,omitempty"`
	PlacementSide     *enums.Side        `json:"placement_side,omitempty"`
	LeftID            *uuid.UUID         `json:"left_id,omitempty"`
	RightID           *uuid.UUID         `json:"right_id,omitempty"`
	PersonalVolume    decimal.Decimal    `json:"personal_volume"`
	BusinessVolume    decimal.Decimal    `json:"business_volume"`
	Club              enums.Club         `json:"club"`
	Rank              int                `json:"rank"`
	InfinitySponsorID *uuid.UUID         `json:"infinity_sponsor_id,omitempty"`
	ReferralCount     int                `json:"referral_count"`
	FirstOrderAt      *time.Time         `json:"first_order_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

// Profile composes the member record with its wallet status.
type Profile struct {
	Member MemberDTO      `json:"member"`
	Wallet wallets.Status `json:"wallet"`
}

// FromModel maps the persistence model onto the public view.
func FromModel(m models.Member) MemberDTO {
	return MemberDTO{
		ID:                m.ID,
		Name:              m.Name,
		Status:            m.Status,
		SponsorID:         m.SponsorID,
		PreferredSide:     m.PreferredSide,
		ParentID:          m.ParentID,
		PlacementSide:     m.PlacementSide,
		LeftID:            m.LeftID,
		RightID:           m.RightID,
		PersonalVolume:    m.PersonalVolume,
		BusinessVolume:    m.BusinessVolume,
		Club:              m.Club,
		Rank:              m.Rank,
		InfinitySponsorID: m.InfinitySponsorID,
		ReferralCount:     m.ReferralCount,
		FirstOrderAt:      m.FirstOrderAt,
		CreatedAt:         m.CreatedAt,
	}
}
