package handler

import (
	"context"
	"net/http"

	"ideavote/internal/auth"
	"ideavote/internal/vote"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// TallyView is a shared read-through cache of idea totals.
type TallyView interface {
	Get(ctx context.Context, ideaID string) (vote.Counts, bool, error)
	Set(ctx context.Context, ideaID string, c vote.Counts) error
}

type VoteHandler struct {
	Svc     *vote.Service
	Tallies TallyView
}

type castVoteReq struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	Value      int    `json:"value"`
}

type castVoteResp struct {
	Message      string   `json:"message"`
	LikeCount    int64    `json:"likeCount"`
	DislikeCount int64    `json:"dislikeCount"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Cast handles POST /votes. The idempotency token is the bearer token's jti.
func (h *VoteHandler) Cast(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFromContext(r.Context())

	var req castVoteReq
	if err := decode(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "bad json")
		return
	}

	res, err := h.Svc.Cast(r.Context(), vote.CastInput{
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		UserID:     caller.ID,
		Value:      req.Value,
		Token:      caller.JTI,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	code := http.StatusOK
	if res.Outcome == vote.OutcomeCast {
		code = http.StatusCreated
	}
	writeJSON(w, code, castVoteResp{
		Message:      "Vote successfully " + string(res.Outcome) + ".",
		LikeCount:    res.Counts.Likes,
		DislikeCount: res.Counts.Dislikes,
		Warnings:     res.Warnings,
	})
}

// Tally handles GET /votes/{type}/{id}. Idea tallies go through the shared
// view that every invalidation of the idea drops.
func (h *VoteHandler) Tally(w http.ResponseWriter, r *http.Request) {
	target, err := vote.ParseTarget(chi.URLParam(r, "type"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	cacheable := h.Tallies != nil && target.Type == vote.TargetIdea
	if cacheable {
		c, ok, err := h.Tallies.Get(r.Context(), target.ID)
		if err != nil {
			log.Warn().Err(err).Str("idea_id", target.ID).Msg("tally view read failed")
		}
		if ok {
			writeJSON(w, http.StatusOK, c)
			return
		}
	}

	c, err := h.Svc.Tally(r.Context(), target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cacheable {
		if err := h.Tallies.Set(r.Context(), target.ID, c); err != nil {
			log.Warn().Err(err).Str("idea_id", target.ID).Msg("tally view write failed")
		}
	}
	writeJSON(w, http.StatusOK, c)
}
