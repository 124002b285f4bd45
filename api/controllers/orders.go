package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/binarycomp-backend/api/responses"
	"github.com/angelmondragon/binarycomp-backend/api/validators"
	"github.com/angelmondragon/binarycomp-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/binarycomp-backend/pkg/errors"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
)

type createOrderRequest struct {
	PayerID        string          `json:"payer_id" validate:"required,uuid"`
	Amount         decimal.Decimal `json:"amount" validate:"gt=0"`
	Volume         decimal.Decimal `json:"volume" validate:"gte=0"`
	BusinessVolume decimal.Decimal `json:"business_volume" validate:"gte=0"`
}

// CreateOrder records a pending purchase from the order feed.
func CreateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payerID, err := uuid.Parse(req.PayerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payer_id"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithMemberID(ctx, payerID.String())
		}
		dto, err := svc.Create(ctx, orders.CreateInput{
			PayerID:        payerID,
			Amount:         req.Amount,
			Volume:         req.Volume,
			BusinessVolume: req.BusinessVolume,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

// CompleteOrder marks the order paid. Volume is credited and the order becomes
// eligible for the next payout window; completing twice is a no-op.
func CompleteOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}
		dto, err := svc.Complete(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// CancelOrder withdraws a pending order; completed orders cannot be cancelled.
func CancelOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Cancel(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}
