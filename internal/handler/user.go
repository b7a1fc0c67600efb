package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tierbet/backoffice/internal/auth"
	"github.com/tierbet/backoffice/internal/domain"
	"github.com/tierbet/backoffice/internal/service"
)

// UserHandler handles downline account endpoints.
type UserHandler struct {
	accounts *service.AccountService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(accounts *service.AccountService) *UserHandler {
	return &UserHandler{accounts: accounts}
}

// CreateDownline handles POST /users. The new account is created one tier
// below the caller.
func (h *UserHandler) CreateDownline(w http.ResponseWriter, r *http.Request) {
	actorID, err := actorIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var input service.CreateDownlineInput
	if err := DecodeJSON(r, &input); err != nil {
		respondBadBody(w)
		return
	}

	user, err := h.accounts.CreateDownline(r.Context(), actorID, input)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusCreated, user)
}

// ListDownline handles GET /users/downline. With ?all=true the full
// subtree is returned instead of direct children; ?role= filters by role.
func (h *UserHandler) ListDownline(w http.ResponseWriter, r *http.Request) {
	actorID, err := actorIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var users []domain.User
	if r.URL.Query().Get("all") == "true" {
		roleFilter := domain.Role(r.URL.Query().Get("role"))
		if roleFilter != "" && !roleFilter.Valid() {
			RespondError(w, domain.ErrInvalidArgument("unknown role filter"))
			return
		}
		users, err = h.accounts.ListDescendants(r.Context(), actorID, roleFilter)
	} else {
		users, err = h.accounts.ListDownline(r.Context(), actorID)
	}
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// actorIDFromContext extracts and validates the acting user's UUID from
// the auth context.
func actorIDFromContext(r *http.Request) (uuid.UUID, error) {
	sub := auth.SubjectFromContext(r.Context())
	if sub == "" {
		return uuid.Nil, domain.ErrUnauthorized("no subject in context")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, domain.ErrUnauthorized("invalid subject")
	}
	return id, nil
}
