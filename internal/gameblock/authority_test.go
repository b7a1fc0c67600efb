package gameblock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tierbet/backoffice/internal/domain"
	"github.com/tierbet/backoffice/internal/hierarchy"
	"github.com/tierbet/backoffice/internal/repository/fake"
)

type blockFixture struct {
	users     *fake.UserRepo
	blocks    *fake.GameBlockRepo
	outbox    *fake.OutboxRepo
	authority *Authority

	admin, super, agent, player uuid.UUID
}

func newBlockFixture(t *testing.T) *blockFixture {
	t.Helper()
	users := fake.NewUserRepo()
	blocks := fake.NewGameBlockRepo()
	outbox := fake.NewOutboxRepo()

	f := &blockFixture{users: users, blocks: blocks, outbox: outbox}
	f.admin = users.Add(domain.User{Role: domain.RoleAdmin})
	f.super = users.Add(domain.User{Role: domain.RoleSuperAgent, ParentID: &f.admin})
	f.agent = users.Add(domain.User{Role: domain.RoleAgent, ParentID: &f.super})
	f.player = users.Add(domain.User{Role: domain.RolePlayer, ParentID: &f.agent})

	store := hierarchy.NewStore(users, nil)
	f.authority = NewAuthority(store, blocks, users, outbox, nil)
	return f
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return domain.AsAppError(err).Code
}

const game = "baccarat"

func TestBlockMonotonicity(t *testing.T) {
	f := newBlockFixture(t)
	ctx := context.Background()

	// Agent blocks: NONE -> LEVEL_3.
	gb, err := f.authority.Block(ctx, nil, game, f.agent)
	require.NoError(t, err)
	assert.Equal(t, domain.BlockLevel3, gb.Level)

	// Player may never block; state unchanged.
	_, err = f.authority.Block(ctx, nil, game, f.player)
	assert.Equal(t, "UNAUTHORIZED", errCode(t, err))
	cur, _ := f.blocks.Find(ctx, nil, game)
	assert.Equal(t, domain.BlockLevel3, cur.Level)

	// Re-applying the same level is an idempotent success.
	otherAgent := f.users.Add(domain.User{Role: domain.RoleAgent, ParentID: &f.super})
	gb, err = f.authority.Block(ctx, nil, game, otherAgent)
	require.NoError(t, err)
	assert.Equal(t, domain.BlockLevel3, gb.Level)
	assert.Len(t, gb.BlockedBy, 2)

	// Super-agent escalates to LEVEL_2.
	gb, err = f.authority.Block(ctx, nil, game, f.super)
	require.NoError(t, err)
	assert.Equal(t, domain.BlockLevel2, gb.Level)

	// Agent cannot pull it back down to LEVEL_3 via block.
	_, err = f.authority.Block(ctx, nil, game, f.agent)
	assert.Equal(t, "INVALID_TRANSITION", errCode(t, err))

	// Admin escalates to LEVEL_1.
	gb, err = f.authority.Block(ctx, nil, game, f.admin)
	require.NoError(t, err)
	assert.Equal(t, domain.BlockLevel1, gb.Level)
}

func TestBlockUnknownActor(t *testing.T) {
	f := newBlockFixture(t)
	_, err := f.authority.Block(context.Background(), nil, game, uuid.New())
	assert.Equal(t, "NOT_FOUND", errCode(t, err))
}

func TestUnblockAuthorization(t *testing.T) {
	ctx := context.Background()

	t.Run("blocker may lift their own block", func(t *testing.T) {
		f := newBlockFixture(t)
		_, err := f.authority.Block(ctx, nil, game, f.agent)
		require.NoError(t, err)

		gb, err := f.authority.Unblock(ctx, nil, game, f.agent)
		require.NoError(t, err)
		assert.Equal(t, domain.BlockNone, gb.Level)
		assert.Empty(t, gb.BlockedBy)
	})

	t.Run("higher tier may lift a lower tier block", func(t *testing.T) {
		f := newBlockFixture(t)
		_, err := f.authority.Block(ctx, nil, game, f.agent)
		require.NoError(t, err)

		gb, err := f.authority.Unblock(ctx, nil, game, f.super)
		require.NoError(t, err)
		assert.Equal(t, domain.BlockNone, gb.Level)
	})

	t.Run("admin may lift anything", func(t *testing.T) {
		f := newBlockFixture(t)
		_, err := f.authority.Block(ctx, nil, game, f.super)
		require.NoError(t, err)

		gb, err := f.authority.Unblock(ctx, nil, game, f.admin)
		require.NoError(t, err)
		assert.Equal(t, domain.BlockNone, gb.Level)
	})

	t.Run("peer of blocker may not unblock", func(t *testing.T) {
		f := newBlockFixture(t)
		otherAgent := f.users.Add(domain.User{Role: domain.RoleAgent, ParentID: &f.super})
		_, err := f.authority.Block(ctx, nil, game, f.agent)
		require.NoError(t, err)

		_, err = f.authority.Unblock(ctx, nil, game, otherAgent)
		assert.Equal(t, "UNAUTHORIZED", errCode(t, err))
	})

	t.Run("lower tier may not unblock", func(t *testing.T) {
		f := newBlockFixture(t)
		_, err := f.authority.Block(ctx, nil, game, f.super)
		require.NoError(t, err)

		_, err = f.authority.Unblock(ctx, nil, game, f.agent)
		assert.Equal(t, "UNAUTHORIZED", errCode(t, err))
	})

	t.Run("unblocking an unblocked game is a no-op", func(t *testing.T) {
		f := newBlockFixture(t)
		gb, err := f.authority.Unblock(ctx, nil, game, f.player)
		require.NoError(t, err)
		assert.Equal(t, domain.BlockNone, gb.Level)
	})
}

func TestBlockEmitsOutboxEvents(t *testing.T) {
	f := newBlockFixture(t)
	ctx := context.Background()

	_, err := f.authority.Block(ctx, nil, game, f.agent)
	require.NoError(t, err)
	require.Len(t, f.outbox.Drafts, 1)
	assert.Equal(t, domain.EventGameBlocked, f.outbox.Drafts[0].EventType)
	assert.Equal(t, game, f.outbox.Drafts[0].AggregateID)

	_, err = f.authority.Unblock(ctx, nil, game, f.agent)
	require.NoError(t, err)
	require.Len(t, f.outbox.Drafts, 2)
	assert.Equal(t, domain.EventGameUnblocked, f.outbox.Drafts[1].EventType)
}

func TestBlockBetting(t *testing.T) {
	ctx := context.Background()

	t.Run("agent blocks a downline player", func(t *testing.T) {
		f := newBlockFixture(t)
		player, err := f.authority.BlockBetting(ctx, nil, f.agent, f.player)
		require.NoError(t, err)
		assert.Equal(t, domain.BlockLevel3, player.BlockingLevel)

		stored, err := f.users.FindByID(ctx, nil, f.player)
		require.NoError(t, err)
		assert.Equal(t, domain.BlockLevel3, stored.BlockingLevel)
	})

	t.Run("same tier re-block is idempotent", func(t *testing.T) {
		f := newBlockFixture(t)
		_, err := f.authority.BlockBetting(ctx, nil, f.agent, f.player)
		require.NoError(t, err)

		player, err := f.authority.BlockBetting(ctx, nil, f.agent, f.player)
		require.NoError(t, err)
		assert.Equal(t, domain.BlockLevel3, player.BlockingLevel)
	})

	t.Run("higher tier escalates, lower tier cannot downgrade", func(t *testing.T) {
		f := newBlockFixture(t)
		_, err := f.authority.BlockBetting(ctx, nil, f.super, f.player)
		require.NoError(t, err)

		_, err = f.authority.BlockBetting(ctx, nil, f.agent, f.player)
		assert.Equal(t, "INVALID_TRANSITION", errCode(t, err))
	})

	t.Run("actor outside the player's upline is refused", func(t *testing.T) {
		f := newBlockFixture(t)
		otherAgent := f.users.Add(domain.User{Role: domain.RoleAgent, ParentID: &f.super})
		_, err := f.authority.BlockBetting(ctx, nil, otherAgent, f.player)
		assert.Equal(t, "FORBIDDEN", errCode(t, err))
	})

	t.Run("admin may block any player", func(t *testing.T) {
		f := newBlockFixture(t)
		player, err := f.authority.BlockBetting(ctx, nil, f.admin, f.player)
		require.NoError(t, err)
		assert.Equal(t, domain.BlockLevel1, player.BlockingLevel)
	})

	t.Run("players may not block", func(t *testing.T) {
		f := newBlockFixture(t)
		_, err := f.authority.BlockBetting(ctx, nil, f.player, f.player)
		assert.Equal(t, "UNAUTHORIZED", errCode(t, err))
	})

	t.Run("only player accounts can be restricted", func(t *testing.T) {
		f := newBlockFixture(t)
		_, err := f.authority.BlockBetting(ctx, nil, f.super, f.agent)
		assert.Equal(t, "INVALID_ARGUMENT", errCode(t, err))
	})

	t.Run("unknown player", func(t *testing.T) {
		f := newBlockFixture(t)
		_, err := f.authority.BlockBetting(ctx, nil, f.agent, uuid.New())
		assert.Equal(t, "NOT_FOUND", errCode(t, err))
	})
}

func TestUnblockBetting(t *testing.T) {
	ctx := context.Background()

	t.Run("same tier lifts its own block", func(t *testing.T) {
		f := newBlockFixture(t)
		_, err := f.authority.BlockBetting(ctx, nil, f.agent, f.player)
		require.NoError(t, err)

		player, err := f.authority.UnblockBetting(ctx, nil, f.agent, f.player)
		require.NoError(t, err)
		assert.Equal(t, domain.BlockNone, player.BlockingLevel)
	})

	t.Run("lower tier may not lift a higher tier block", func(t *testing.T) {
		f := newBlockFixture(t)
		_, err := f.authority.BlockBetting(ctx, nil, f.super, f.player)
		require.NoError(t, err)

		_, err = f.authority.UnblockBetting(ctx, nil, f.agent, f.player)
		assert.Equal(t, "UNAUTHORIZED", errCode(t, err))
	})

	t.Run("admin lifts anything", func(t *testing.T) {
		f := newBlockFixture(t)
		_, err := f.authority.BlockBetting(ctx, nil, f.super, f.player)
		require.NoError(t, err)

		player, err := f.authority.UnblockBetting(ctx, nil, f.admin, f.player)
		require.NoError(t, err)
		assert.Equal(t, domain.BlockNone, player.BlockingLevel)
	})

	t.Run("unblocking an unrestricted player is a no-op", func(t *testing.T) {
		f := newBlockFixture(t)
		player, err := f.authority.UnblockBetting(ctx, nil, f.agent, f.player)
		require.NoError(t, err)
		assert.Equal(t, domain.BlockNone, player.BlockingLevel)
	})
}

func TestCanPlay(t *testing.T) {
	ctx := context.Background()

	t.Run("unblocked game is playable", func(t *testing.T) {
		f := newBlockFixture(t)
		ok, err := f.authority.CanPlay(ctx, game, f.player)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("admin block hides game from everyone", func(t *testing.T) {
		f := newBlockFixture(t)
		_, err := f.authority.Block(ctx, nil, game, f.admin)
		require.NoError(t, err)

		ok, err := f.authority.CanPlay(ctx, game, f.player)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("agent block hides game only downline", func(t *testing.T) {
		f := newBlockFixture(t)
		otherAgent := f.users.Add(domain.User{Role: domain.RoleAgent, ParentID: &f.super})
		otherPlayer := f.users.Add(domain.User{Role: domain.RolePlayer, ParentID: &otherAgent})

		_, err := f.authority.Block(ctx, nil, game, f.agent)
		require.NoError(t, err)

		ok, err := f.authority.CanPlay(ctx, game, f.player)
		require.NoError(t, err)
		assert.False(t, ok, "player under the blocking agent")

		ok, err = f.authority.CanPlay(ctx, game, otherPlayer)
		require.NoError(t, err)
		assert.True(t, ok, "player under a different agent")
	})

	t.Run("super-agent block covers grandchildren", func(t *testing.T) {
		f := newBlockFixture(t)
		_, err := f.authority.Block(ctx, nil, game, f.super)
		require.NoError(t, err)

		ok, err := f.authority.CanPlay(ctx, game, f.player)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown player", func(t *testing.T) {
		f := newBlockFixture(t)
		_, err := f.authority.CanPlay(ctx, game, uuid.New())
		assert.Equal(t, "NOT_FOUND", errCode(t, err))
	})
}
