// Package hierarchy centralizes all parent/child tree traversal over the
// users table. Other components never walk parent pointers themselves.
package hierarchy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tierbet/backoffice/internal/domain"
	"github.com/tierbet/backoffice/internal/repository"
)

// MaxDepth caps every traversal. The tree is four tiers deep by
// construction, so hitting the cap means a corrupted parent chain
// (a cycle), which surfaces as DATA_INTEGRITY instead of a hang.
const MaxDepth = 64

// Store answers identity and tree-shape questions about users.
type Store struct {
	users repository.UserRepository
	db    repository.DBTX
}

// NewStore creates a hierarchy store over the given repository and handle.
func NewStore(users repository.UserRepository, db repository.DBTX) *Store {
	return &Store{users: users, db: db}
}

// GetUser returns the user or NOT_FOUND.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound("user", id.String())
	}
	return user, nil
}

// GetRole returns the user's role or NOT_FOUND.
func (s *Store) GetRole(ctx context.Context, id uuid.UUID) (domain.Role, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

// GetParent returns the user's parent, or nil for root admins.
func (s *Store) GetParent(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.ParentID == nil {
		return nil, nil
	}
	return s.GetUser(ctx, *user.ParentID)
}

// ListDescendants walks the tree downward from id, collecting every
// descendant, optionally restricted to one role. A super-agent yields its
// agents and their players; an agent yields its players; a player yields
// nothing. Breadth-first, capped at MaxDepth levels.
func (s *Store) ListDescendants(ctx context.Context, id uuid.UUID, roleFilter domain.Role) ([]domain.User, error) {
	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}

	var out []domain.User
	frontier := []uuid.UUID{id}
	seen := map[uuid.UUID]bool{id: true}

	for depth := 0; len(frontier) > 0; depth++ {
		if depth >= MaxDepth {
			return nil, domain.ErrDataIntegrity(fmt.Sprintf("hierarchy deeper than %d levels below %s", MaxDepth, id))
		}

		var next []uuid.UUID
		for _, parentID := range frontier {
			children, err := s.users.ListChildren(ctx, s.db, parentID)
			if err != nil {
				return nil, fmt.Errorf("list children of %s: %w", parentID, err)
			}
			for _, child := range children {
				if seen[child.ID] {
					return nil, domain.ErrDataIntegrity(fmt.Sprintf("user %s appears twice in hierarchy walk", child.ID))
				}
				seen[child.ID] = true
				if roleFilter == "" || child.Role == roleFilter {
					out = append(out, child)
				}
				next = append(next, child.ID)
			}
		}
		frontier = next
	}
	return out, nil
}

// IsAncestor walks parent links upward from userID looking for
// candidateAncestorID. Terminates in O(depth); a chain longer than
// MaxDepth is reported as DATA_INTEGRITY rather than looping forever.
func (s *Store) IsAncestor(ctx context.Context, candidateAncestorID, userID uuid.UUID) (bool, error) {
	current, err := s.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}

	for depth := 0; current.ParentID != nil; depth++ {
		if depth >= MaxDepth {
			return false, domain.ErrDataIntegrity(fmt.Sprintf("ancestor chain of %s exceeds %d levels", userID, MaxDepth))
		}
		if *current.ParentID == candidateAncestorID {
			return true, nil
		}
		current, err = s.GetUser(ctx, *current.ParentID)
		if err != nil {
			return false, err
		}
	}
	return false, nil
}
