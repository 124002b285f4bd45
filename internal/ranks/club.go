package ranks

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
)

// ClubThreshold is the minimum a member needs on every measure to hold Club.
// Side minimums apply to the weaker leg.
type ClubThreshold struct {
	Club           enums.Club
	DirectVolume   decimal.Decimal
	InfinityVolume decimal.Decimal
	LifetimePayout decimal.Decimal
}

// DefaultClubThresholds is the ascending three-tier table.
func DefaultClubThresholds() []ClubThreshold {
	return []ClubThreshold{
		{
			Club:           enums.ClubSilver,
			DirectVolume:   decimal.NewFromInt(500),
			InfinityVolume: decimal.NewFromInt(2000),
			LifetimePayout: decimal.Zero,
		},
		{
			Club:           enums.ClubGold,
			DirectVolume:   decimal.NewFromInt(2000),
			InfinityVolume: decimal.NewFromInt(10000),
			LifetimePayout: decimal.NewFromInt(5000),
		},
		{
			Club:           enums.ClubDiamond,
			DirectVolume:   decimal.NewFromInt(10000),
			InfinityVolume: decimal.NewFromInt(50000),
			LifetimePayout: decimal.NewFromInt(25000),
		},
	}
}

// ClubMetrics are the measured inputs of a club evaluation.
type ClubMetrics struct {
	LeftDirectVolume    decimal.Decimal `json:"left_direct_volume"`
	RightDirectVolume   decimal.Decimal `json:"right_direct_volume"`
	LeftInfinityVolume  decimal.Decimal `json:"left_infinity_volume"`
	RightInfinityVolume decimal.Decimal `json:"right_infinity_volume"`
	LifetimePayout      decimal.Decimal `json:"lifetime_payout"`
}

func (m ClubMetrics) meets(t ClubThreshold) bool {
	return decimal.Min(m.LeftDirectVolume, m.RightDirectVolume).GreaterThanOrEqual(t.DirectVolume) &&
		decimal.Min(m.LeftInfinityVolume, m.RightInfinityVolume).GreaterThanOrEqual(t.InfinityVolume) &&
		m.LifetimePayout.GreaterThanOrEqual(t.LifetimePayout)
}

// qualifyingClub walks the ascending table and returns the highest tier met.
// A tier is only reachable once every lower tier is met.
func qualifyingClub(m ClubMetrics, table []ClubThreshold) enums.Club {
	club := enums.ClubNone
	for _, t := range table {
		if !m.meets(t) {
			break
		}
		club = t.Club
	}
	return club
}
