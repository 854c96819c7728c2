package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"codeclash/internal/api/middleware"
	"codeclash/internal/app/service"
	"codeclash/internal/common"
	"codeclash/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type BattleHandler struct {
	battleService *service.BattleService
}

func NewBattleHandler(bs *service.BattleService) *BattleHandler {
	return &BattleHandler{battleService: bs}
}

func (h *BattleHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator) // All battle routes require auth
	r.Post("/", h.createBattle)
	r.Get("/{battleID}", h.getBattle)
	r.Post("/{battleID}/join", h.joinBattle)
	r.Post("/{battleID}/accept", h.acceptBattle)
	r.Post("/{battleID}/decline", h.declineBattle)
	r.Post("/{battleID}/submissions", h.submitBattle)
}

func (h *BattleHandler) createBattle(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req service.CreateBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	battle, err := h.battleService.CreateBattle(r.Context(), userID, req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, battle)
}

func (h *BattleHandler) getBattle(w http.ResponseWriter, r *http.Request) {
	battle, err := h.battleService.GetBattle(r.Context(), chi.URLParam(r, "battleID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, battle)
}

func (h *BattleHandler) joinBattle(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.battleService.Join)
}

func (h *BattleHandler) acceptBattle(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.battleService.Accept)
}

func (h *BattleHandler) declineBattle(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.battleService.Decline)
}

func (h *BattleHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID, battleID string) (*model.Battle, error)) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	battle, err := fn(r.Context(), userID, chi.URLParam(r, "battleID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, battle)
}

func (h *BattleHandler) submitBattle(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req service.BattleSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	resp, err := h.battleService.Submit(r.Context(), userID, chi.URLParam(r, "battleID"), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}
