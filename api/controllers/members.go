package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/binarycomp-backend/api/responses"
	"github.com/angelmondragon/binarycomp-backend/api/validators"
	"github.com/angelmondragon/binarycomp-backend/internal/members"
	"github.com/angelmondragon/binarycomp-backend/internal/wallets"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/binarycomp-backend/pkg/errors"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
)

const maxMemberNameLength = 120

type registerMemberRequest struct {
	Name          string  `json:"name" validate:"required,min=1,max=120"`
	SponsorID     *string `json:"sponsor_id" validate:"omitempty,uuid"`
	Side          *string `json:"side" validate:"omitempty,oneof=left right"`
	PreferredSide *string `json:"preferred_side" validate:"omitempty,oneof=left right"`
}

type memberStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive blocked"`
}

type walletRequest struct {
	PayoutDestination *string `json:"payout_destination" validate:"omitempty,max=256"`
	IdentityVerified  bool    `json:"identity_verified"`
}

// RegisterMember enrolls a member and places them in the binary tree.
func RegisterMember(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "member service unavailable"))
			return
		}

		var req registerMemberRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := members.RegisterInput{Name: validators.SanitizeString(req.Name, maxMemberNameLength)}
		if req.SponsorID != nil {
			sponsorID, err := uuid.Parse(*req.SponsorID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sponsor_id"))
				return
			}
			input.SponsorID = &sponsorID
		}
		if req.Side != nil {
			side := enums.Side(*req.Side)
			input.Side = &side
		}
		if req.PreferredSide != nil {
			side := enums.Side(*req.PreferredSide)
			input.PreferredSide = &side
		}

		dto, err := svc.Register(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

// GetMember returns the member with rank, club and wallet status.
func GetMember(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, err := validators.PathUUID(r, "memberId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := svc.Get(r.Context(), memberID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

func UpdateMemberStatus(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, err := validators.PathUUID(r, "memberId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req memberStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.SetStatus(r.Context(), memberID, enums.MemberStatus(req.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// UpdateWallet replaces the member's payout destination and verification flag.
// Held payouts pick up the change on the next hold release run.
func UpdateWallet(memberSvc members.Service, walletSvc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, err := validators.PathUUID(r, "memberId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req walletRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := memberSvc.Get(r.Context(), memberID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithMemberID(ctx, memberID.String())
		}
		status, err := walletSvc.Update(ctx, wallets.UpdateInput{
			MemberID:          memberID,
			PayoutDestination: req.PayoutDestination,
			IdentityVerified:  req.IdentityVerified,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
