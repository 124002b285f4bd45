package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/binarycomp-backend/api/responses"
	"github.com/angelmondragon/binarycomp-backend/api/validators"
	"github.com/angelmondragon/binarycomp-backend/internal/payouts"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/binarycomp-backend/pkg/errors"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
)

const maxSearchLength = 100

// ListPayouts returns a filtered, cursor-paged payout listing.
func ListPayouts(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		params, err := payoutListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := result.Items
		if items == nil {
			items = []payouts.PayoutDTO{}
		}
		responses.WriteList(w, items, result.Cursor)
	}
}

func payoutListParams(r *http.Request) (payouts.ListParams, error) {
	var (
		params payouts.ListParams
		err    error
	)
	if params.MemberID, err = validators.ParseQueryUUID(r, "memberId"); err != nil {
		return params, err
	}
	if params.From, err = validators.ParseQueryTime(r, "from"); err != nil {
		return params, err
	}
	if params.To, err = validators.ParseQueryTime(r, "to"); err != nil {
		return params, err
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, parseErr := enums.ParsePayoutStatus(raw)
		if parseErr != nil {
			return params, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status").WithDetails(map[string]any{"field": "status"})
		}
		params.Status = &status
	}
	if params.Limit, err = validators.ParseQueryInt(r, "limit", 0, 1, 200); err != nil {
		return params, err
	}
	params.Search = validators.SanitizeString(r.URL.Query().Get("q"), maxSearchLength)
	params.Cursor = strings.TrimSpace(r.URL.Query().Get("cursor"))
	return params, nil
}

// PayoutSummary returns a member's lifetime, pending and on-hold totals.
func PayoutSummary(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, err := validators.PathUUID(r, "memberId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Summary(r.Context(), memberID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func GetPayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payoutID, err := validators.PathUUID(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Get(r.Context(), payoutID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// CompletePayout records that a pending payout was disbursed. On-hold payouts
// are rejected with a state conflict.
func CompletePayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payoutID, err := validators.PathUUID(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithField(ctx, "payout_id", payoutID.String())
		}
		dto, err := svc.MarkCompleted(ctx, payoutID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}
