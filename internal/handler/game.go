package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tierbet/backoffice/internal/domain"
	"github.com/tierbet/backoffice/internal/service"
)

// GameHandler handles game block authority endpoints.
type GameHandler struct {
	wallet *service.WalletService
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(wallet *service.WalletService) *GameHandler {
	return &GameHandler{wallet: wallet}
}

// Block handles POST /games/{gameID}/block.
func (h *GameHandler) Block(w http.ResponseWriter, r *http.Request) {
	actorID, err := actorIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	block, err := h.wallet.BlockGame(r.Context(), chi.URLParam(r, "gameID"), actorID)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, block)
}

// Unblock handles POST /games/{gameID}/unblock.
func (h *GameHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	actorID, err := actorIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	block, err := h.wallet.UnblockGame(r.Context(), chi.URLParam(r, "gameID"), actorID)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, block)
}

// CanPlay handles GET /games/{gameID}/can-play. An optional ?user_id=
// checks a specific player instead of the caller.
func (h *GameHandler) CanPlay(w http.ResponseWriter, r *http.Request) {
	actorID, err := actorIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	playerID := actorID
	if q := r.URL.Query().Get("user_id"); q != "" {
		playerID, err = uuid.Parse(q)
		if err != nil {
			RespondError(w, domain.ErrInvalidArgument("invalid user_id"))
			return
		}
	}

	gameID := chi.URLParam(r, "gameID")
	allowed, err := h.wallet.CanPlay(r.Context(), gameID, playerID)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"game_id":  gameID,
		"user_id":  playerID.String(),
		"can_play": allowed,
	})
}
