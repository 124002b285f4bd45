package payouts

import (
	"github.com/shopspring/decimal"
)

// SplitTable holds the percentage shares taken out of gross. Withdrawable
// receives whatever is left after rounding the other buckets.
type SplitTable struct {
	Withdrawable decimal.Decimal
	Reward       decimal.Decimal
	TaxWithheld  decimal.Decimal
	PlatformFee  decimal.Decimal
}

var (
	// UnverifiedSplit applies while the beneficiary's identity is unverified.
	UnverifiedSplit = SplitTable{
		Withdrawable: decimal.NewFromInt(62),
		Reward:       decimal.NewFromInt(8),
		TaxWithheld:  decimal.NewFromInt(20),
		PlatformFee:  decimal.NewFromInt(10),
	}
	// VerifiedSplit applies once identity is verified.
	VerifiedSplit = SplitTable{
		Withdrawable: decimal.NewFromInt(77),
		Reward:       decimal.NewFromInt(8),
		TaxWithheld:  decimal.NewFromInt(5),
		PlatformFee:  decimal.NewFromInt(10),
	}
)

var hundred = decimal.NewFromInt(100)

// Breakdown is the four-way split of a gross amount. The buckets always sum
// to Gross.
type Breakdown struct {
	Gross        decimal.Decimal `json:"gross"`
	Withdrawable decimal.Decimal `json:"withdrawable"`
	Reward       decimal.Decimal `json:"reward"`
	TaxWithheld  decimal.Decimal `json:"tax_withheld"`
	PlatformFee  decimal.Decimal `json:"platform_fee"`
}

// Sum adds the four buckets.
func (b Breakdown) Sum() decimal.Decimal {
	return b.Withdrawable.Add(b.Reward).Add(b.TaxWithheld).Add(b.PlatformFee)
}

// Split divides gross using the table for the beneficiary's verification
// status. Buckets are rounded to cents.
func Split(gross decimal.Decimal, verified bool) Breakdown {
	table := UnverifiedSplit
	if verified {
		table = VerifiedSplit
	}
	return table.Apply(gross)
}

func (t SplitTable) Apply(gross decimal.Decimal) Breakdown {
	gross = gross.Round(2)
	share := func(pct decimal.Decimal) decimal.Decimal {
		return gross.Mul(pct).Div(hundred).Round(2)
	}
	reward := share(t.Reward)
	tax := share(t.TaxWithheld)
	fee := share(t.PlatformFee)
	return Breakdown{
		Gross:        gross,
		Withdrawable: gross.Sub(reward).Sub(tax).Sub(fee),
		Reward:       reward,
		TaxWithheld:  tax,
		PlatformFee:  fee,
	}
}
