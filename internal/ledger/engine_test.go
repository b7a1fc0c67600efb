package ledger

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tierbet/backoffice/internal/domain"
	"github.com/tierbet/backoffice/internal/repository/fake"
)

type engineFixture struct {
	users  *fake.UserRepo
	ledger *fake.LedgerRepo
	outbox *fake.OutboxRepo
	engine *Engine
}

func newFixture(t *testing.T, allowNegative bool) *engineFixture {
	t.Helper()
	users := fake.NewUserRepo()
	ledgerRepo := fake.NewLedgerRepo()
	outbox := fake.NewOutboxRepo()
	return &engineFixture{
		users:  users,
		ledger: ledgerRepo,
		outbox: outbox,
		engine: NewEngine(users, ledgerRepo, outbox, allowNegative),
	}
}

// seedTree creates admin -> superagent -> agent -> player, returning the IDs.
func (f *engineFixture) seedTree(balances ...int64) (admin, super, agent, player uuid.UUID) {
	bal := func(i int) int64 {
		if i < len(balances) {
			return balances[i]
		}
		return 0
	}
	admin = f.users.Add(domain.User{Role: domain.RoleAdmin, Balances: domain.Balances{Balance: bal(0)}})
	super = f.users.Add(domain.User{Role: domain.RoleSuperAgent, ParentID: &admin, Balances: domain.Balances{Balance: bal(1)}})
	agent = f.users.Add(domain.User{Role: domain.RoleAgent, ParentID: &super, Balances: domain.Balances{Balance: bal(2)}})
	player = f.users.Add(domain.User{Role: domain.RolePlayer, ParentID: &agent, Balances: domain.Balances{Balance: bal(3)}})
	return
}

func appErrCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	appErr := domain.AsAppError(err)
	return appErr.Code
}

// --- Transfer Tests ---

func TestExecuteTransferConservation(t *testing.T) {
	f := newFixture(t, false)
	_, _, agent, player := f.seedTree(0, 0, 10000, 500)
	ctx := context.Background()

	res, err := f.engine.ExecuteTransfer(ctx, nil, TransferParams{OwnerID: agent, TargetID: player, Amount: 3000})
	require.NoError(t, err)

	assert.Equal(t, int64(7000), res.OwnerBalance)
	assert.Equal(t, int64(3500), res.TargetBalance)

	ownerRow, _ := f.users.FindByID(ctx, nil, agent)
	targetRow, _ := f.users.FindByID(ctx, nil, player)
	assert.Equal(t, int64(10500), ownerRow.Balance+targetRow.Balance, "sum of balances unchanged")

	require.NotNil(t, res.OwnerEntry)
	require.NotNil(t, res.TargetEntry)
	assert.Equal(t, domain.EntryGive, res.OwnerEntry.Type)
	assert.Equal(t, int64(3000), res.OwnerEntry.Debit)
	assert.Equal(t, int64(0), res.OwnerEntry.Credit)
	assert.Equal(t, domain.EntryTake, res.TargetEntry.Type)
	assert.Equal(t, int64(3000), res.TargetEntry.Credit)
	assert.Equal(t, int64(0), res.TargetEntry.Debit)
}

func TestExecuteTransferChildToParent(t *testing.T) {
	f := newFixture(t, false)
	_, _, agent, player := f.seedTree(0, 0, 100, 5000)

	res, err := f.engine.ExecuteTransfer(context.Background(), nil, TransferParams{OwnerID: player, TargetID: agent, Amount: 2000})
	require.NoError(t, err)
	assert.Equal(t, int64(3000), res.OwnerBalance)
	assert.Equal(t, int64(2100), res.TargetBalance)
}

func TestExecuteTransferPreconditions(t *testing.T) {
	f := newFixture(t, false)
	admin, super, agent, player := f.seedTree(0, 0, 100, 100)
	sibling := f.users.Add(domain.User{Role: domain.RoleAgent, ParentID: &super, Balances: domain.Balances{Balance: 100}})
	ctx := context.Background()

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := f.engine.ExecuteTransfer(ctx, nil, TransferParams{OwnerID: agent, TargetID: player, Amount: 0})
		assert.Equal(t, "INVALID_ARGUMENT", appErrCode(t, err))
	})

	t.Run("self transfer", func(t *testing.T) {
		_, err := f.engine.ExecuteTransfer(ctx, nil, TransferParams{OwnerID: agent, TargetID: agent, Amount: 10})
		assert.Equal(t, "INVALID_ARGUMENT", appErrCode(t, err))
	})

	t.Run("missing target", func(t *testing.T) {
		_, err := f.engine.ExecuteTransfer(ctx, nil, TransferParams{OwnerID: agent, TargetID: uuid.New(), Amount: 10})
		assert.Equal(t, "NOT_FOUND", appErrCode(t, err))
	})

	t.Run("siblings are unauthorized", func(t *testing.T) {
		_, err := f.engine.ExecuteTransfer(ctx, nil, TransferParams{OwnerID: agent, TargetID: sibling, Amount: 10})
		assert.Equal(t, "UNAUTHORIZED", appErrCode(t, err))
	})

	t.Run("grandparent is unauthorized", func(t *testing.T) {
		_, err := f.engine.ExecuteTransfer(ctx, nil, TransferParams{OwnerID: admin, TargetID: agent, Amount: 10})
		assert.Equal(t, "UNAUTHORIZED", appErrCode(t, err))
	})
}

func TestExecuteTransferInsufficientFunds(t *testing.T) {
	f := newFixture(t, false)
	_, _, agent, player := f.seedTree(0, 0, 100, 0)
	ctx := context.Background()

	_, err := f.engine.ExecuteTransfer(ctx, nil, TransferParams{OwnerID: agent, TargetID: player, Amount: 150})
	assert.Equal(t, "INSUFFICIENT_FUNDS", appErrCode(t, err))

	// No mutation: balances intact, no ledger entries written.
	ownerRow, _ := f.users.FindByID(ctx, nil, agent)
	assert.Equal(t, int64(100), ownerRow.Balance)
	assert.Empty(t, f.ledger.Entries)
	assert.Empty(t, f.outbox.Drafts)
}

func TestExecuteTransferLedgerBalanceAgreement(t *testing.T) {
	f := newFixture(t, false)
	_, _, agent, player := f.seedTree(0, 0, 10000, 0)
	ctx := context.Background()

	for _, amount := range []int64{100, 2500, 42} {
		_, err := f.engine.ExecuteTransfer(ctx, nil, TransferParams{OwnerID: agent, TargetID: player, Amount: amount})
		require.NoError(t, err)
	}

	for _, id := range []uuid.UUID{agent, player} {
		row, _ := f.users.FindByID(ctx, nil, id)
		last := f.ledger.LastForUser(id)
		require.NotNil(t, last)
		assert.Equal(t, row.Balance, last.BalanceAfter, "live balance equals latest snapshot")
	}
}

// --- Place Bet Tests ---

func TestExecutePlaceBet(t *testing.T) {
	f := newFixture(t, false)
	_, _, _, player := f.seedTree(0, 0, 0, 10000)
	f.users.Users[player].CommissionRate = 5
	ctx := context.Background()

	res, err := f.engine.ExecutePlaceBet(ctx, nil, PlaceBetParams{UserID: player, RoundID: "r1", Stake: 2000})
	require.NoError(t, err)

	assert.Equal(t, int64(8000), res.User.Balance)
	assert.Equal(t, int64(2000), res.User.Exposure)
	assert.Equal(t, domain.EntryBetPlaced, res.Entry.Type)
	assert.Equal(t, int64(2000), res.Entry.Debit)
	require.NotNil(t, res.Entry.RoundID)
	assert.Equal(t, "r1", *res.Entry.RoundID)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Entry.Metadata, &meta))
	assert.Equal(t, float64(100), meta["commission"], "5% of 2000")
}

func TestExecutePlaceBetDuplicate(t *testing.T) {
	f := newFixture(t, false)
	_, _, _, player := f.seedTree(0, 0, 0, 10000)
	ctx := context.Background()

	_, err := f.engine.ExecutePlaceBet(ctx, nil, PlaceBetParams{UserID: player, RoundID: "r1", Stake: 100})
	require.NoError(t, err)

	_, err = f.engine.ExecutePlaceBet(ctx, nil, PlaceBetParams{UserID: player, RoundID: "r1", Stake: 100})
	assert.Equal(t, "CONFLICT", appErrCode(t, err))

	row, _ := f.users.FindByID(ctx, nil, player)
	assert.Equal(t, int64(9900), row.Balance, "wallet debited exactly once")
}

func TestExecutePlaceBetNegativeBalancePolicy(t *testing.T) {
	t.Run("forbidden by default", func(t *testing.T) {
		f := newFixture(t, false)
		_, _, _, player := f.seedTree(0, 0, 0, 50)
		_, err := f.engine.ExecutePlaceBet(context.Background(), nil, PlaceBetParams{UserID: player, RoundID: "r1", Stake: 100})
		assert.Equal(t, "INSUFFICIENT_FUNDS", appErrCode(t, err))
	})

	t.Run("allowed when configured", func(t *testing.T) {
		f := newFixture(t, true)
		_, _, _, player := f.seedTree(0, 0, 0, 50)
		res, err := f.engine.ExecutePlaceBet(context.Background(), nil, PlaceBetParams{UserID: player, RoundID: "r1", Stake: 100})
		require.NoError(t, err)
		assert.Equal(t, int64(-50), res.User.Balance)
	})
}

func TestExecutePlaceBetRejectsNonPlayers(t *testing.T) {
	f := newFixture(t, false)
	_, _, agent, _ := f.seedTree(0, 0, 1000, 0)
	_, err := f.engine.ExecutePlaceBet(context.Background(), nil, PlaceBetParams{UserID: agent, RoundID: "r1", Stake: 100})
	assert.Equal(t, "UNAUTHORIZED", appErrCode(t, err))
}

func TestExecutePlaceBetRejectsBlockedAccounts(t *testing.T) {
	f := newFixture(t, false)
	_, _, _, player := f.seedTree(0, 0, 0, 10000)
	ctx := context.Background()

	require.NoError(t, f.users.UpdateBlockingLevel(ctx, nil, player, domain.BlockLevel3))

	_, err := f.engine.ExecutePlaceBet(ctx, nil, PlaceBetParams{UserID: player, RoundID: "r1", Stake: 100})
	assert.Equal(t, "FORBIDDEN", appErrCode(t, err))

	// Lifting the restriction makes the same placement succeed.
	require.NoError(t, f.users.UpdateBlockingLevel(ctx, nil, player, domain.BlockNone))
	_, err = f.engine.ExecutePlaceBet(ctx, nil, PlaceBetParams{UserID: player, RoundID: "r1", Stake: 100})
	require.NoError(t, err)
}

// --- Bet Result Tests ---

func TestExecuteBetResultRoundTrip(t *testing.T) {
	f := newFixture(t, false)
	_, _, _, player := f.seedTree(0, 0, 0, 10000)
	ctx := context.Background()

	_, err := f.engine.ExecutePlaceBet(ctx, nil, PlaceBetParams{UserID: player, RoundID: "r1", Stake: 50})
	require.NoError(t, err)

	res, err := f.engine.ExecuteBetResult(ctx, nil, BetResultParams{UserID: player, RoundID: "r1", IsWinner: true, Amount: 200})
	require.NoError(t, err)

	// balance_before - 50 + 200
	assert.Equal(t, int64(10150), res.User.Balance)
	assert.Equal(t, int64(0), res.User.Exposure, "exposure released on settlement")
	assert.Equal(t, domain.EntryWin, res.Entry.Type)

	round, err := f.engine.ListByRound(ctx, nil, "r1")
	require.NoError(t, err)
	require.Len(t, round, 2)
	assert.Equal(t, domain.EntryBetPlaced, round[0].Type)
	assert.Equal(t, domain.EntryWin, round[1].Type)
}

func TestExecuteBetResultLoss(t *testing.T) {
	f := newFixture(t, false)
	_, _, _, player := f.seedTree(0, 0, 0, 1000)
	ctx := context.Background()

	_, err := f.engine.ExecutePlaceBet(ctx, nil, PlaceBetParams{UserID: player, RoundID: "r1", Stake: 300})
	require.NoError(t, err)

	res, err := f.engine.ExecuteBetResult(ctx, nil, BetResultParams{UserID: player, RoundID: "r1", IsWinner: false})
	require.NoError(t, err)

	assert.Equal(t, int64(700), res.User.Balance, "no change beyond the stake deduction")
	assert.Equal(t, int64(0), res.User.Exposure)
	assert.Equal(t, domain.EntryLose, res.Entry.Type)
	assert.Zero(t, res.Entry.Debit)
	assert.Zero(t, res.Entry.Credit)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Entry.Metadata, &meta))
	assert.Equal(t, float64(300), meta["forfeited"])
}

func TestExecuteBetResultWithoutBet(t *testing.T) {
	f := newFixture(t, false)
	_, _, _, player := f.seedTree(0, 0, 0, 1000)
	_, err := f.engine.ExecuteBetResult(context.Background(), nil, BetResultParams{UserID: player, RoundID: "ghost", IsWinner: true, Amount: 10})
	assert.Equal(t, "NOT_FOUND", appErrCode(t, err))
}

func TestExecuteBetResultIdempotency(t *testing.T) {
	f := newFixture(t, false)
	_, _, _, player := f.seedTree(0, 0, 0, 1000)
	ctx := context.Background()

	_, err := f.engine.ExecutePlaceBet(ctx, nil, PlaceBetParams{UserID: player, RoundID: "r1", Stake: 100})
	require.NoError(t, err)

	_, err = f.engine.ExecuteBetResult(ctx, nil, BetResultParams{UserID: player, RoundID: "r1", IsWinner: true, Amount: 400})
	require.NoError(t, err)

	_, err = f.engine.ExecuteBetResult(ctx, nil, BetResultParams{UserID: player, RoundID: "r1", IsWinner: true, Amount: 400})
	assert.Equal(t, "CONFLICT", appErrCode(t, err))

	row, _ := f.users.FindByID(ctx, nil, player)
	assert.Equal(t, int64(1300), row.Balance, "win credited exactly once")
}

// --- Append Tests ---

func TestAppendUnknownKind(t *testing.T) {
	f := newFixture(t, false)
	_, _, _, player := f.seedTree()
	_, _, err := f.engine.Append(context.Background(), nil, domain.AppendParams{
		UserID: player,
		Kind:   domain.BalanceKind("bonus"),
		Amount: 10,
		Type:   domain.EntryDeposit,
	})
	assert.Equal(t, "INVALID_ARGUMENT", appErrCode(t, err))
}

func TestAppendMissingUser(t *testing.T) {
	f := newFixture(t, false)
	_, _, err := f.engine.Append(context.Background(), nil, domain.AppendParams{
		UserID: uuid.New(),
		Kind:   domain.KindWallet,
		Amount: 10,
		Type:   domain.EntryDeposit,
	})
	assert.Equal(t, "NOT_FOUND", appErrCode(t, err))
}

func TestAppendCoinsKind(t *testing.T) {
	f := newFixture(t, false)
	_, _, _, player := f.seedTree()
	entry, updated, err := f.engine.Append(context.Background(), nil, domain.AppendParams{
		UserID: player,
		Kind:   domain.KindCoins,
		Amount: 750,
		Type:   domain.EntryDeposit,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(750), updated.Coins)
	assert.Equal(t, int64(0), updated.Balance)
	assert.Equal(t, int64(750), entry.Credit)
	assert.Equal(t, int64(750), entry.CoinsAfter)
}

func TestAppendEmitsOutboxEvents(t *testing.T) {
	f := newFixture(t, false)
	_, _, _, player := f.seedTree(0, 0, 0, 100)
	_, _, err := f.engine.Append(context.Background(), nil, domain.AppendParams{
		UserID: player,
		Kind:   domain.KindWallet,
		Amount: -40,
		Type:   domain.EntryWithdrawal,
	})
	require.NoError(t, err)
	require.Len(t, f.outbox.Drafts, 2)
	assert.Equal(t, domain.EventEntryPosted, f.outbox.Drafts[0].EventType)
	assert.Equal(t, player.String(), f.outbox.Drafts[0].AggregateID)
	assert.Equal(t, domain.EventBalanceChanged, f.outbox.Drafts[1].EventType)
	assert.Equal(t, player.String(), f.outbox.Drafts[1].AggregateID)
}

func TestGetEntry(t *testing.T) {
	f := newFixture(t, false)
	_, _, _, player := f.seedTree(0, 0, 0, 500)
	ctx := context.Background()

	entry, _, err := f.engine.Append(ctx, nil, domain.AppendParams{
		UserID: player,
		Kind:   domain.KindWallet,
		Amount: -100,
		Type:   domain.EntryWithdrawal,
	})
	require.NoError(t, err)

	got, err := f.engine.GetEntry(ctx, nil, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, player, got.UserID)

	_, err = f.engine.GetEntry(ctx, nil, uuid.New())
	assert.Equal(t, "NOT_FOUND", appErrCode(t, err))
}

// --- ListForUser Tests ---

func TestListForUserPagination(t *testing.T) {
	f := newFixture(t, false)
	_, _, agent, player := f.seedTree(0, 0, 100000, 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.engine.ExecuteTransfer(ctx, nil, TransferParams{OwnerID: agent, TargetID: player, Amount: 100})
		require.NoError(t, err)
	}

	page1, err := f.engine.ListForUser(ctx, nil, player, 1, 2, domain.LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, page1, 2)

	page3, err := f.engine.ListForUser(ctx, nil, player, 3, 2, domain.LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, page3, 1)

	assert.True(t, page1[0].CreatedAt.After(page1[1].CreatedAt), "newest first")

	_, err = f.engine.ListForUser(ctx, nil, uuid.New(), 1, 10, domain.LedgerFilter{})
	assert.Equal(t, "NOT_FOUND", appErrCode(t, err))
}
