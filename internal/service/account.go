package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/tierbet/backoffice/internal/auth"
	"github.com/tierbet/backoffice/internal/domain"
	"github.com/tierbet/backoffice/internal/hierarchy"
	"github.com/tierbet/backoffice/internal/repository"
)

// AccountService handles login and downline account management.
type AccountService struct {
	pool      *pgxpool.Pool
	users     repository.UserRepository
	authUsers repository.AuthUserRepository
	outbox    repository.OutboxRepository
	store     *hierarchy.Store
	jwtMgr    *auth.JWTManager
	logger    *slog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(
	pool *pgxpool.Pool,
	users repository.UserRepository,
	authUsers repository.AuthUserRepository,
	outbox repository.OutboxRepository,
	store *hierarchy.Store,
	jwtMgr *auth.JWTManager,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		pool:      pool,
		users:     users,
		authUsers: authUsers,
		outbox:    outbox,
		store:     store,
		jwtMgr:    jwtMgr,
		logger:    logger,
	}
}

// LoginInput holds the login request fields.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned on successful login.
type AuthResult struct {
	Token  string       `json:"token"`
	UserID uuid.UUID    `json:"user_id"`
	Email  string       `json:"email"`
	Role   domain.Role  `json:"role"`
	User   *domain.User `json:"user"`
}

// Login authenticates an account and returns a JWT.
func (s *AccountService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	account, err := s.authUsers.FindByEmail(ctx, s.pool, input.Email)
	if err != nil {
		return nil, domain.ErrInternal("find auth user", err)
	}
	if account == nil {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)); err != nil {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}

	user, err := s.users.FindByID(ctx, s.pool, account.ID)
	if err != nil {
		return nil, domain.ErrInternal("find user", err)
	}
	if user == nil {
		return nil, domain.ErrDataIntegrity("auth account without hierarchy row: " + account.ID.String())
	}

	token, err := s.jwtMgr.GenerateToken(user.ID, account.Email, user.Role)
	if err != nil {
		return nil, domain.ErrInternal("generate token", err)
	}

	return &AuthResult{
		Token:  token,
		UserID: user.ID,
		Email:  account.Email,
		Role:   user.Role,
		User:   user,
	}, nil
}

// CreateDownlineInput holds the fields for creating a direct child account.
type CreateDownlineInput struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	Currency       string `json:"currency"`
	CommissionRate int64  `json:"commission_rate"`
}

// CreateDownline creates a new account exactly one tier below the actor.
// The child's role is derived from the actor's role, never from the request.
func (s *AccountService) CreateDownline(ctx context.Context, actorID uuid.UUID, input CreateDownlineInput) (*domain.User, error) {
	if err := domain.ValidateEmail(input.Email); err != nil {
		return nil, domain.ErrInvalidArgument(err.Error())
	}
	if len(input.Password) < 8 {
		return nil, domain.ErrInvalidArgument("password must be at least 8 characters")
	}
	if input.Currency == "" {
		input.Currency = "EUR"
	}
	if err := domain.ValidateCurrency(input.Currency); err != nil {
		return nil, domain.ErrInvalidArgument(err.Error())
	}
	if err := domain.ValidateCommissionRate(input.CommissionRate); err != nil {
		return nil, domain.ErrInvalidArgument(err.Error())
	}

	actor, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}

	childRole := actor.Role.ChildRole()
	if childRole == "" {
		return nil, domain.ErrForbidden("players cannot create accounts")
	}

	existing, err := s.authUsers.FindByEmail(ctx, s.pool, input.Email)
	if err != nil {
		return nil, domain.ErrInternal("find auth user", err)
	}
	if existing != nil {
		return nil, domain.ErrConflict("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.ErrInternal("hash password", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	userID := uuid.New()
	parentID := actor.ID
	now := time.Now()

	user := &domain.User{
		ID:             userID,
		ParentID:       &parentID,
		Role:           childRole,
		CommissionRate: input.CommissionRate,
		BlockingLevel:  domain.BlockNone,
		Currency:       input.Currency,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.Create(ctx, tx, user); err != nil {
		return nil, domain.ErrInternal("create user", err)
	}

	account := &domain.AuthUser{
		ID:           userID,
		Email:        input.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.authUsers.Create(ctx, tx, account); err != nil {
		return nil, domain.ErrInternal("create auth user", err)
	}

	if err := s.outbox.Insert(ctx, tx, domain.NewUserCreatedEvent(user, input.Email)); err != nil {
		return nil, domain.ErrInternal("outbox user created", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}

	s.logger.Info("downline account created",
		"user_id", userID, "parent_id", parentID, "role", childRole)

	return user, nil
}

// ListDownline returns the actor's direct children.
func (s *AccountService) ListDownline(ctx context.Context, actorID uuid.UUID) ([]domain.User, error) {
	if _, err := s.store.GetUser(ctx, actorID); err != nil {
		return nil, err
	}
	return s.users.ListChildren(ctx, s.pool, actorID)
}

// ListDescendants returns the actor's entire downline, optionally filtered
// by role.
func (s *AccountService) ListDescendants(ctx context.Context, actorID uuid.UUID, roleFilter domain.Role) ([]domain.User, error) {
	return s.store.ListDescendants(ctx, actorID, roleFilter)
}

// GetUser returns a single account. Non-admin actors may only read
// themselves or accounts in their own downline.
func (s *AccountService) GetUser(ctx context.Context, actorID, targetID uuid.UUID) (*domain.User, error) {
	if err := s.authorizeRead(ctx, actorID, targetID); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, targetID)
}

func (s *AccountService) authorizeRead(ctx context.Context, actorID, targetID uuid.UUID) error {
	if actorID == targetID {
		return nil
	}

	actor, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.Role == domain.RoleAdmin {
		return nil
	}

	ok, err := s.store.IsAncestor(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrForbidden("account is outside your downline")
	}
	return nil
}
