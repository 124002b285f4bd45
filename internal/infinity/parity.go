package infinity

import "github.com/google/uuid"

// ReferralSequence is a member's direct referrals in the order they joined.
// Positions are 1-based.
type ReferralSequence []uuid.UUID

// SplitByParity partitions a member's referrals. A member without a sponsor
// keeps every referral. Otherwise odd positions (1st, 3rd, ...) are kept and
// even positions roll up to the sponsor's first level.
func SplitByParity(seq ReferralSequence, hasSponsor bool) (kept, rolledUp []uuid.UUID) {
	if !hasSponsor {
		return append([]uuid.UUID(nil), seq...), nil
	}
	for i, id := range seq {
		if (i+1)%2 == 1 {
			kept = append(kept, id)
		} else {
			rolledUp = append(rolledUp, id)
		}
	}
	return kept, rolledUp
}
