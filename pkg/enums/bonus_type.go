package enums

import "fmt"

// BonusType names the compensation rule that produced a payout.
type BonusType string

const (
	// BonusTypeDirect is a fixed amount paid to the referrer on a first order.
	BonusTypeDirect BonusType = "direct"
	// BonusTypeRepurchase is a share of volume paid to the referrer on repeat orders.
	BonusTypeRepurchase BonusType = "repurchase"
	// BonusTypeInfinity is a share of volume paid to the payer's infinity sponsor.
	BonusTypeInfinity BonusType = "infinity"
	// BonusTypeRank is a fixed amount per granted rank level.
	BonusTypeRank BonusType = "rank"
)

var validBonusTypes = []BonusType{
	BonusTypeDirect,
	BonusTypeRepurchase,
	BonusTypeInfinity,
	BonusTypeRank,
}

// String implements fmt.Stringer.
func (b BonusType) String() string {
	return string(b)
}

// IsValid reports whether the value matches a known BonusType.
func (b BonusType) IsValid() bool {
	for _, candidate := range validBonusTypes {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBonusType converts raw input into a BonusType.
func ParseBonusType(value string) (BonusType, error) {
	for _, candidate := range validBonusTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bonus type %q", value)
}
