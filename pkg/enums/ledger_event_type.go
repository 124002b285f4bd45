package enums

import "fmt"

// LedgerEventType classifies an immutable ledger row.
type LedgerEventType string

const (
	// LedgerEventTypePayoutCredit mirrors the creation of a payout.
	LedgerEventTypePayoutCredit LedgerEventType = "payout_credit"
	// LedgerEventTypePayoutDebit mirrors the settlement of a payout.
	LedgerEventTypePayoutDebit LedgerEventType = "payout_debit"
	LedgerEventTypeAdjustment  LedgerEventType = "adjustment"
)

var validLedgerEventTypes = []LedgerEventType{
	LedgerEventTypePayoutCredit,
	LedgerEventTypePayoutDebit,
	LedgerEventTypeAdjustment,
}

// IsValid reports whether the value matches the canonical ledger event enum.
func (t LedgerEventType) IsValid() bool {
	for _, candidate := range validLedgerEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerEventType converts raw input into LedgerEventType.
func ParseLedgerEventType(value string) (LedgerEventType, error) {
	for _, candidate := range validLedgerEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger event type %q", value)
}
