package enums

import (
	"fmt"
	"strings"
)

// Side identifies one of the two binary slots under a tree node.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

var validSides = []Side{
	SideLeft,
	SideRight,
}

// String implements fmt.Stringer.
func (s Side) String() string {
	return string(s)
}

// IsValid reports whether the value matches a known Side.
func (s Side) IsValid() bool {
	for _, candidate := range validSides {
		if candidate == s {
			return true
		}
	}
	return false
}

// Opposite returns the other slot.
func (s Side) Opposite() Side {
	if s == SideLeft {
		return SideRight
	}
	return SideLeft
}

// ParseSide converts raw input into a Side; matching is case-insensitive.
func ParseSide(value string) (Side, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validSides {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid side %q", value)
}
