package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tierbet/backoffice/internal/domain"
	"github.com/tierbet/backoffice/internal/service"
)

// WalletHandler handles balance, transfer and ledger endpoints.
type WalletHandler struct {
	wallet *service.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(wallet *service.WalletService) *WalletHandler {
	return &WalletHandler{wallet: wallet}
}

// balanceResponse is the shape of GET /wallet/balance.
type balanceResponse struct {
	UserID   string `json:"user_id"`
	Coins    int64  `json:"coins"`
	Balance  int64  `json:"balance"`
	Exposure int64  `json:"exposure"`
	Currency string `json:"currency"`
}

// GetBalance handles GET /wallet/balance. An optional ?user_id= reads a
// downline account's balance instead of the caller's.
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	actorID, err := actorIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	targetID := actorID
	if q := r.URL.Query().Get("user_id"); q != "" {
		targetID, err = uuid.Parse(q)
		if err != nil {
			RespondError(w, domain.ErrInvalidArgument("invalid user_id"))
			return
		}
	}

	user, err := h.wallet.GetBalance(r.Context(), actorID, targetID)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, balanceResponse{
		UserID:   user.ID.String(),
		Coins:    user.Coins,
		Balance:  user.Balance,
		Exposure: user.Exposure,
		Currency: user.Currency,
	})
}

// transferRequest is the body of POST /wallet/transfer. Direction "give"
// (default) moves funds from the caller to the target; "take" pulls funds
// from a direct child back to the caller.
type transferRequest struct {
	TargetID  string `json:"target_id"`
	Amount    int64  `json:"amount"`
	Direction string `json:"direction"`
}

// Transfer handles POST /wallet/transfer.
func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	actorID, err := actorIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req transferRequest
	if err := DecodeJSON(r, &req); err != nil {
		respondBadBody(w)
		return
	}

	targetID, err := uuid.Parse(req.TargetID)
	if err != nil {
		RespondError(w, domain.ErrInvalidArgument("invalid target_id"))
		return
	}

	var result *domain.TransferResult
	switch req.Direction {
	case "", "give":
		result, err = h.wallet.Give(r.Context(), actorID, targetID, req.Amount)
	case "take":
		result, err = h.wallet.Take(r.Context(), actorID, targetID, req.Amount)
	default:
		err = domain.ErrInvalidArgument("direction must be give or take")
	}
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

// ledgerListResponse wraps a ledger page.
type ledgerListResponse struct {
	Entries  []domain.LedgerEntry `json:"entries"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

// ListLedger handles GET /wallet/ledger with page/page_size pagination and
// optional from/to (RFC 3339) and status filters. An optional ?user_id=
// reads a downline account's history instead of the caller's.
func (h *WalletHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	actorID, err := actorIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	targetID := actorID
	if q := r.URL.Query().Get("user_id"); q != "" {
		targetID, err = uuid.Parse(q)
		if err != nil {
			RespondError(w, domain.ErrInvalidArgument("invalid user_id"))
			return
		}
	}

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			page = n
		}
	}
	pageSize := 20
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if n, err := strconv.Atoi(ps); err == nil && n > 0 && n <= 100 {
			pageSize = n
		}
	}

	var filter domain.LedgerFilter
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			RespondError(w, domain.ErrInvalidArgument("invalid from timestamp"))
			return
		}
		filter.From = &t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			RespondError(w, domain.ErrInvalidArgument("invalid to timestamp"))
			return
		}
		filter.To = &t
	}
	filter.Status = domain.EntryStatus(r.URL.Query().Get("status"))

	entries, err := h.wallet.ListLedger(r.Context(), actorID, targetID, page, pageSize, filter)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, ledgerListResponse{
		Entries:  entries,
		Page:     page,
		PageSize: pageSize,
	})
}

// GetEntry handles GET /wallet/ledger/{entryID}.
func (h *WalletHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	actorID, err := actorIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	entryID, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		RespondError(w, domain.ErrInvalidArgument("invalid entry id"))
		return
	}

	entry, err := h.wallet.GetEntry(r.Context(), actorID, entryID)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, entry)
}

// ListRound handles GET /rounds/{roundID}/ledger.
func (h *WalletHandler) ListRound(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "roundID")

	entries, err := h.wallet.ListRound(r.Context(), roundID)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"round_id": roundID,
		"entries":  entries,
	})
}
