package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tierbet/backoffice/internal/domain"
	"github.com/tierbet/backoffice/internal/service"
)

// BetHandler handles bet placement and settlement endpoints.
type BetHandler struct {
	wallet *service.WalletService
}

// NewBetHandler creates a new BetHandler.
func NewBetHandler(wallet *service.WalletService) *BetHandler {
	return &BetHandler{wallet: wallet}
}

// placeBetRequest is the body of POST /bets/place.
type placeBetRequest struct {
	RoundID string `json:"round_id"`
	Stake   int64  `json:"stake"`
}

// Place handles POST /bets/place. The bet is always placed on the
// caller's own account.
func (h *BetHandler) Place(w http.ResponseWriter, r *http.Request) {
	actorID, err := actorIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req placeBetRequest
	if err := DecodeJSON(r, &req); err != nil {
		respondBadBody(w)
		return
	}

	result, err := h.wallet.PlaceBet(r.Context(), actorID, req.RoundID, req.Stake)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusCreated, result)
}

// settleBetRequest is the body of POST /bets/settle.
type settleBetRequest struct {
	UserID   string `json:"user_id"`
	RoundID  string `json:"round_id"`
	IsWinner bool   `json:"is_winner"`
	Amount   int64  `json:"amount"`
}

// Settle handles POST /bets/settle. Restricted to manager roles via
// route middleware; the settled player is named in the body.
func (h *BetHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var req settleBetRequest
	if err := DecodeJSON(r, &req); err != nil {
		respondBadBody(w)
		return
	}

	playerID, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondError(w, domain.ErrInvalidArgument("invalid user_id"))
		return
	}

	result, err := h.wallet.SettleBet(r.Context(), playerID, req.RoundID, req.IsWinner, req.Amount)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

// BlockBetting handles POST /users/{userID}/block-betting.
func (h *BetHandler) BlockBetting(w http.ResponseWriter, r *http.Request) {
	h.setBettingBlock(w, r, true)
}

// UnblockBetting handles POST /users/{userID}/unblock-betting.
func (h *BetHandler) UnblockBetting(w http.ResponseWriter, r *http.Request) {
	h.setBettingBlock(w, r, false)
}

func (h *BetHandler) setBettingBlock(w http.ResponseWriter, r *http.Request, block bool) {
	actorID, err := actorIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	playerID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		RespondError(w, domain.ErrInvalidArgument("invalid user id"))
		return
	}

	var player *domain.User
	if block {
		player, err = h.wallet.BlockBetting(r.Context(), actorID, playerID)
	} else {
		player, err = h.wallet.UnblockBetting(r.Context(), actorID, playerID)
	}
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":        player.ID,
		"blocking_level": player.BlockingLevel,
	})
}
