package enums

import "fmt"

// PayoutStatus is the lifecycle of a computed bonus.
type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "pending"
	PayoutStatusOnHold    PayoutStatus = "on_hold"
	PayoutStatusCompleted PayoutStatus = "completed"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusPending,
	PayoutStatusOnHold,
	PayoutStatusCompleted,
}

// payoutTransitions lists every allowed move. Completed is terminal.
// OnHold -> Pending is the hold release and leaves amounts untouched.
var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutStatusPending: {PayoutStatusOnHold, PayoutStatusCompleted},
	PayoutStatusOnHold:  {PayoutStatusPending, PayoutStatusCompleted},
}

// String implements fmt.Stringer.
func (s PayoutStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches a known PayoutStatus.
func (s PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutStatusCompleted
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	for _, candidate := range payoutTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}
