package payouts

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestSplit_UnverifiedThousand(t *testing.T) {
	b := Split(decimal.NewFromInt(1000), false)
	assert.True(t, b.Withdrawable.Equal(dec("620")), b.Withdrawable.String())
	assert.True(t, b.Reward.Equal(dec("80")))
	assert.True(t, b.TaxWithheld.Equal(dec("200")))
	assert.True(t, b.PlatformFee.Equal(dec("100")))
	assert.True(t, b.Sum().Equal(dec("1000")))
}

func TestSplit_VerifiedThousand(t *testing.T) {
	b := Split(decimal.NewFromInt(1000), true)
	assert.True(t, b.Withdrawable.Equal(dec("770")))
	assert.True(t, b.Reward.Equal(dec("80")))
	assert.True(t, b.TaxWithheld.Equal(dec("50")))
	assert.True(t, b.PlatformFee.Equal(dec("100")))
}

func TestSplit_AlwaysSumsToGross(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		gross := decimal.New(rng.Int63n(10_000_000), -2)
		for _, verified := range []bool{false, true} {
			b := Split(gross, verified)
			require.True(t, b.Sum().Equal(gross), "gross=%s verified=%v got %s", gross, verified, b.Sum())
			require.False(t, b.Withdrawable.IsNegative())
		}
	}
}

func TestWindowFor_Halves(t *testing.T) {
	loc := time.FixedZone("IST", 330*60)
	cases := []struct {
		name  string
		at    time.Time
		start time.Time
	}{
		{"early morning belongs to previous evening", time.Date(2026, 3, 2, 5, 59, 59, 999_000_000, loc), time.Date(2026, 3, 1, 18, 0, 0, 0, loc)},
		{"six sharp opens day half", time.Date(2026, 3, 2, 6, 0, 0, 0, loc), time.Date(2026, 3, 2, 6, 0, 0, 0, loc)},
		{"late afternoon", time.Date(2026, 3, 2, 17, 59, 59, 999_000_000, loc), time.Date(2026, 3, 2, 6, 0, 0, 0, loc)},
		{"evening", time.Date(2026, 3, 2, 23, 0, 0, 0, loc), time.Date(2026, 3, 2, 18, 0, 0, 0, loc)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := WindowFor(tc.at, loc)
			assert.True(t, w.Start.Equal(tc.start), "start %s", w.Start.In(loc))
			assert.Equal(t, 12*time.Hour, w.End.Sub(w.Start))
			assert.True(t, w.Contains(tc.at))
			assert.Equal(t, time.UTC, w.Start.Location())
		})
	}
}

func TestPreviousWindowAndParse(t *testing.T) {
	loc := time.FixedZone("IST", 330*60)
	now := time.Date(2026, 3, 2, 7, 0, 0, 0, loc)
	prev := PreviousWindow(now, loc)
	assert.True(t, prev.Start.Equal(time.Date(2026, 3, 1, 18, 0, 0, 0, loc)))
	assert.True(t, prev.End.Equal(time.Date(2026, 3, 2, 6, 0, 0, 0, loc)))
	assert.Equal(t, "2026-03-01T18:00+05:30", prev.Label(loc))

	parsed, err := ParseWindow("2026-03-01T18:00", loc)
	require.NoError(t, err)
	assert.Equal(t, prev, parsed)

	_, err = ParseWindow("2026-03-01T19:00", loc)
	assert.Error(t, err)
}
