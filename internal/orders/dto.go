package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
)

// CreateInput is a purchase arriving from the order feed.
type CreateInput struct {
	PayerID        uuid.UUID
	Amount         decimal.Decimal
	Volume         decimal.Decimal
	BusinessVolume decimal.Decimal
}

// OrderDTO is the public view of an order.
type OrderDTO struct {
	ID             uuid.UUID         `json:"id"`
	PayerID        uuid.UUID         `json:"payer_id"`
	ReferrerID     *uuid.UUID        `json:"referrer_id,omitempty"`
	Amount         decimal.Decimal   `json:"amount"`
	Volume         decimal.Decimal   `json:"volume"`
	BusinessVolume decimal.Decimal   `json:"business_volume"`
	Status         enums.OrderStatus `json:"status"`
	IsFirstOrder   bool              `json:"is_first_order"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

func fromModel(o models.Order) OrderDTO {
	return OrderDTO{
		ID:             o.ID,
		PayerID:        o.PayerID,
		ReferrerID:     o.ReferrerID,
		Amount:         o.Amount,
		Volume:         o.Volume,
		BusinessVolume: o.BusinessVolume,
		Status:         o.Status,
		IsFirstOrder:   o.IsFirstOrder,
		CompletedAt:    o.CompletedAt,
		CreatedAt:      o.CreatedAt,
	}
}
