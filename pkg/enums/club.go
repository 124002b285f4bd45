package enums

import "fmt"

// Club is the broad achievement tier. Tiers are ordered and only move up.
type Club string

const (
	ClubNone    Club = "none"
	ClubSilver  Club = "silver"
	ClubGold    Club = "gold"
	ClubDiamond Club = "diamond"
)

// clubOrder is ascending; the index is the tier weight.
var clubOrder = []Club{
	ClubNone,
	ClubSilver,
	ClubGold,
	ClubDiamond,
}

// String implements fmt.Stringer.
func (c Club) String() string {
	return string(c)
}

// IsValid reports whether the value matches a known Club.
func (c Club) IsValid() bool {
	return c.Tier() >= 0
}

// Tier returns the position of the club in the ascending order, or -1.
func (c Club) Tier() int {
	for i, candidate := range clubOrder {
		if candidate == c {
			return i
		}
	}
	return -1
}

// Above reports whether c ranks strictly higher than other.
func (c Club) Above(other Club) bool {
	return c.Tier() > other.Tier()
}

// ParseClub converts raw input into a Club. Empty input maps to ClubNone.
func ParseClub(value string) (Club, error) {
	if value == "" {
		return ClubNone, nil
	}
	for _, candidate := range clubOrder {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid club %q", value)
}
