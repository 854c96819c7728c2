package handler

import (
	"net/http"
	"strconv"

	"codeclash/internal/app/service"
	"codeclash/internal/common"
	"codeclash/internal/platform/config"

	"github.com/go-chi/chi/v5"
)

type LeaderboardHandler struct {
	leaderboardService *service.LeaderboardService
}

func NewLeaderboardHandler(ls *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardService: ls}
}

func (h *LeaderboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.mainLeaderboard)
	r.Get("/battles", h.battleLeaderboard)
}

func (h *LeaderboardHandler) mainLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.leaderboardService.Rank(r.Context(), limitParam(r))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, entries)
}

func (h *LeaderboardHandler) battleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.leaderboardService.BattleRank(r.Context(), limitParam(r))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, entries)
}

func limitParam(r *http.Request) int {
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		return v
	}
	return config.AppConfig.LeaderboardSize
}
