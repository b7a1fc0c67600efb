package hierarchy

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tierbet/backoffice/internal/domain"
	"github.com/tierbet/backoffice/internal/repository/fake"
)

type tree struct {
	users *fake.UserRepo
	store *Store

	admin, super, agentA, agentB     uuid.UUID
	playerA1, playerA2, playerB1     uuid.UUID
}

func newTree(t *testing.T) *tree {
	t.Helper()
	users := fake.NewUserRepo()
	tr := &tree{users: users, store: NewStore(users, nil)}

	tr.admin = users.Add(domain.User{Role: domain.RoleAdmin})
	tr.super = users.Add(domain.User{Role: domain.RoleSuperAgent, ParentID: &tr.admin})
	tr.agentA = users.Add(domain.User{Role: domain.RoleAgent, ParentID: &tr.super})
	tr.agentB = users.Add(domain.User{Role: domain.RoleAgent, ParentID: &tr.super})
	tr.playerA1 = users.Add(domain.User{Role: domain.RolePlayer, ParentID: &tr.agentA})
	tr.playerA2 = users.Add(domain.User{Role: domain.RolePlayer, ParentID: &tr.agentA})
	tr.playerB1 = users.Add(domain.User{Role: domain.RolePlayer, ParentID: &tr.agentB})
	return tr
}

func ids(users []domain.User) []uuid.UUID {
	out := make([]uuid.UUID, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

func TestGetUser(t *testing.T) {
	tr := newTree(t)
	ctx := context.Background()

	u, err := tr.store.GetUser(ctx, tr.agentA)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAgent, u.Role)

	_, err = tr.store.GetUser(ctx, uuid.New())
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", domain.AsAppError(err).Code)
}

func TestGetParent(t *testing.T) {
	tr := newTree(t)
	ctx := context.Background()

	parent, err := tr.store.GetParent(ctx, tr.playerA1)
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, tr.agentA, parent.ID)

	root, err := tr.store.GetParent(ctx, tr.admin)
	require.NoError(t, err)
	assert.Nil(t, root, "root admin has no parent")
}

func TestListDescendants(t *testing.T) {
	tr := newTree(t)
	ctx := context.Background()

	t.Run("super-agent sees agents and players", func(t *testing.T) {
		all, err := tr.store.ListDescendants(ctx, tr.super, "")
		require.NoError(t, err)
		assert.ElementsMatch(t,
			[]uuid.UUID{tr.agentA, tr.agentB, tr.playerA1, tr.playerA2, tr.playerB1},
			ids(all))
	})

	t.Run("role filter keeps only players", func(t *testing.T) {
		players, err := tr.store.ListDescendants(ctx, tr.super, domain.RolePlayer)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{tr.playerA1, tr.playerA2, tr.playerB1}, ids(players))
	})

	t.Run("agent sees only direct players", func(t *testing.T) {
		kids, err := tr.store.ListDescendants(ctx, tr.agentA, "")
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{tr.playerA1, tr.playerA2}, ids(kids))
	})

	t.Run("player has no descendants", func(t *testing.T) {
		none, err := tr.store.ListDescendants(ctx, tr.playerB1, "")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("unknown root", func(t *testing.T) {
		_, err := tr.store.ListDescendants(ctx, uuid.New(), "")
		require.Error(t, err)
		assert.Equal(t, "NOT_FOUND", domain.AsAppError(err).Code)
	})
}

func TestIsAncestor(t *testing.T) {
	tr := newTree(t)
	ctx := context.Background()

	cases := []struct {
		name      string
		ancestor  uuid.UUID
		user      uuid.UUID
		want      bool
	}{
		{"direct parent", tr.agentA, tr.playerA1, true},
		{"grandparent", tr.super, tr.playerA1, true},
		{"great-grandparent", tr.admin, tr.playerA1, true},
		{"uncle agent", tr.agentB, tr.playerA1, false},
		{"sibling", tr.playerA2, tr.playerA1, false},
		{"self", tr.playerA1, tr.playerA1, false},
		{"inverted", tr.playerA1, tr.agentA, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tr.store.IsAncestor(ctx, tc.ancestor, tc.user)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("unknown user", func(t *testing.T) {
		_, err := tr.store.IsAncestor(ctx, tr.admin, uuid.New())
		require.Error(t, err)
		assert.Equal(t, "NOT_FOUND", domain.AsAppError(err).Code)
	})
}

// A corrupted parent chain must be reported, not walked forever.
func TestCycleDetection(t *testing.T) {
	users := fake.NewUserRepo()
	store := NewStore(users, nil)
	ctx := context.Background()

	a := uuid.New()
	b := uuid.New()
	users.Add(domain.User{ID: a, Role: domain.RoleAgent, ParentID: &b})
	users.Add(domain.User{ID: b, Role: domain.RolePlayer, ParentID: &a})

	_, err := store.IsAncestor(ctx, uuid.New(), a)
	require.Error(t, err)
	assert.Equal(t, "DATA_INTEGRITY", domain.AsAppError(err).Code)

	_, err = store.ListDescendants(ctx, a, "")
	require.Error(t, err)
	assert.Equal(t, "DATA_INTEGRITY", domain.AsAppError(err).Code)
}
