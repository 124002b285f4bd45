package payouts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/binarycomp-backend/internal/ledger"
	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
)

// PayoutDTO is the public view of a payout.
type PayoutDTO struct {
	ID            uuid.UUID          `json:"id"`
	BeneficiaryID uuid.UUID          `json:"beneficiary_id"`
	BonusType     enums.BonusType    `json:"bonus_type"`
	Gross         decimal.Decimal    `json:"gross"`
	Withdrawable  decimal.Decimal    `json:"withdrawable"`
	Reward        decimal.Decimal    `json:"reward"`
	TaxWithheld   decimal.Decimal    `json:"tax_withheld"`
	PlatformFee   decimal.Decimal    `json:"platform_fee"`
	Status        enums.PayoutStatus `json:"status"`
	SourceType    string             `json:"source_type"`
	SourceID      uuid.UUID          `json:"source_id"`
	WindowStart   time.Time          `json:"window_start"`
	WindowEnd     time.Time          `json:"window_end"`
	HoldReason    *string            `json:"hold_reason,omitempty"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

func fromModel(p models.Payout) PayoutDTO {
	return PayoutDTO{
		ID:            p.ID,
		BeneficiaryID: p.BeneficiaryID,
		BonusType:     p.BonusType,
		Gross:         p.Gross,
		Withdrawable:  p.Withdrawable,
		Reward:        p.Reward,
		TaxWithheld:   p.TaxWithheld,
		PlatformFee:   p.PlatformFee,
		Status:        p.Status,
		SourceType:    p.SourceType,
		SourceID:      p.SourceID,
		WindowStart:   p.WindowStart,
		WindowEnd:     p.WindowEnd,
		HoldReason:    p.HoldReason,
		CompletedAt:   p.CompletedAt,
		CreatedAt:     p.CreatedAt,
	}
}

// ListParams filters the payout listing. Every field is optional.
type ListParams struct {
	MemberID *uuid.UUID
	From     *time.Time
	To       *time.Time
	Status   *enums.PayoutStatus
	Search   string
	Limit    int
	Cursor   string
}

// ListResult is one page of payouts.
type ListResult struct {
	Items  []PayoutDTO `json:"items"`
	Cursor string      `json:"cursor"`
}

// Summary combines a member's ledger totals with payout counts by status.
type Summary struct {
	ledger.Summary
	ByStatus map[enums.PayoutStatus]StatusTotal `json:"by_status"`
}
