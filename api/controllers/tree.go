package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/binarycomp-backend/api/responses"
	"github.com/angelmondragon/binarycomp-backend/api/validators"
	"github.com/angelmondragon/binarycomp-backend/internal/infinity"
	"github.com/angelmondragon/binarycomp-backend/internal/tree"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
)

// Depth above the configured snapshot depth is clamped by the query engine.
const maxDepthParam = 64

// TreeReader serves nested binary views.
type TreeReader interface {
	BuildTree(ctx context.Context, rootID uuid.UUID, depth int) (*tree.Snapshot, error)
	SearchDownline(ctx context.Context, viewerID, targetID uuid.UUID, depth int) (*tree.Snapshot, error)
}

// TeamReader serves stored infinity teams.
type TeamReader interface {
	Levels(ctx context.Context, ownerID uuid.UUID) (*infinity.Team, error)
}

// MemberTree returns the nested binary view rooted at the member.
func MemberTree(query TreeReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, err := validators.PathUUID(r, "memberId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		depth, err := validators.ParseQueryInt(r, "depth", 0, 1, maxDepthParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snapshot, err := query.BuildTree(r.Context(), memberID, depth)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// SearchDownline returns the target's view only when it sits under the member.
func SearchDownline(query TreeReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewerID, err := validators.PathUUID(r, "memberId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		targetID, err := validators.PathUUID(r, "targetId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		depth, err := validators.ParseQueryInt(r, "depth", 0, 1, maxDepthParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snapshot, err := query.SearchDownline(r.Context(), viewerID, targetID, depth)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// InfinityTeam lists the member's stored infinity team by level.
func InfinityTeam(teams TeamReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, err := validators.PathUUID(r, "memberId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		team, err := teams.Levels(r.Context(), memberID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if team.Levels == nil {
			team.Levels = []infinity.Level{}
		}
		responses.WriteSuccess(w, team)
	}
}
