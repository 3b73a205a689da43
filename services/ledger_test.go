package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"seamless/models"
)

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(decimal.RequireFromString(want)), "want %s, got %s", want, got)
}

func newLedger(t *testing.T, cfg LedgerConfig) (*WalletLedger, *gorm.DB) {
	db := newTestDB(t)
	seedCatalog(t, db)
	return NewWalletLedger(db, NewCatalog(db), cfg), db
}

func seedAccount(t *testing.T, db *gorm.DB, balance string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Account{
		PlayerID: "player-1",
		Currency: "USD",
		Balance:  decimal.RequireFromString(balance),
	}).Error)
}

func betReq(txID, amount string) WalletRequest {
	return WalletRequest{
		Action:        ActionBet,
		PlayerID:      "player-1",
		Currency:      "USD",
		TransactionID: txID,
		Amount:        decimal.RequireFromString(amount),
		Type:          "bet",
		RoundID:       "round-1",
	}
}

func TestConservationWalkthrough(t *testing.T) {
	ledger, _ := newLedger(t, LedgerConfig{})
	seedAccount(t, ledger.db, "100.00")
	ctx := context.Background()

	bet, err := ledger.Apply(ctx, betReq("tx-bet", "2.50"))
	require.NoError(t, err)
	assertAmount(t, "97.5", bet.Balance)
	assert.NotEmpty(t, bet.TransactionID)

	win, err := ledger.Apply(ctx, WalletRequest{
		Action:        ActionWin,
		PlayerID:      "player-1",
		Currency:      "USD",
		TransactionID: "tx-win",
		Amount:        decimal.RequireFromString("10.00"),
		RoundID:       "round-1",
	})
	require.NoError(t, err)
	assertAmount(t, "107.5", win.Balance)

	refund, err := ledger.Apply(ctx, WalletRequest{
		Action:           ActionRefund,
		PlayerID:         "player-1",
		Currency:         "USD",
		TransactionID:    "tx-refund",
		BetTransactionID: "tx-bet",
	})
	require.NoError(t, err)
	assertAmount(t, "110", refund.Balance)

	// The refunded bet is voided, the refund itself applied. Fresh structs per
	// lookup: a populated primary key would leak into the next query.
	var storedBet models.WalletTransaction
	require.NoError(t, ledger.db.Where("transaction_id = ?", "tx-bet").First(&storedBet).Error)
	assert.Equal(t, models.TxVoided, storedBet.Status)
	var storedRefund models.WalletTransaction
	require.NoError(t, ledger.db.Where("transaction_id = ?", "tx-refund").First(&storedRefund).Error)
	assert.Equal(t, models.TxApplied, storedRefund.Status)
	assertAmount(t, "2.5", storedRefund.Amount)
}

func TestIdempotentReplay(t *testing.T) {
	ledger, _ := newLedger(t, LedgerConfig{})
	seedAccount(t, ledger.db, "100.00")
	ctx := context.Background()

	first, err := ledger.Apply(ctx, betReq("tx-1", "10.00"))
	require.NoError(t, err)

	second, err := ledger.Apply(ctx, betReq("tx-1", "10.00"))
	require.NoError(t, err)

	assert.True(t, first.Balance.Equal(second.Balance))
	assert.Equal(t, first.TransactionID, second.TransactionID)

	// The economic effect happened exactly once.
	var acct models.Account
	require.NoError(t, ledger.db.Where("player_id = ?", "player-1").First(&acct).Error)
	assertAmount(t, "90", acct.Balance)
	assert.EqualValues(t, 1, acct.Version)
}

func TestTransactionIdConflict(t *testing.T) {
	ledger, _ := newLedger(t, LedgerConfig{})
	seedAccount(t, ledger.db, "100.00")
	ctx := context.Background()

	_, err := ledger.Apply(ctx, betReq("tx-1", "10.00"))
	require.NoError(t, err)

	_, err = ledger.Apply(ctx, betReq("tx-1", "11.00"))
	assert.ErrorIs(t, err, ErrTransactionConflict)

	win := betReq("tx-1", "10.00")
	win.Action = ActionWin
	_, err = ledger.Apply(ctx, win)
	assert.ErrorIs(t, err, ErrTransactionConflict)
}

func TestInsufficientFunds(t *testing.T) {
	ledger, _ := newLedger(t, LedgerConfig{})
	seedAccount(t, ledger.db, "5.00")
	ctx := context.Background()

	_, err := ledger.Apply(ctx, betReq("tx-1", "10.00"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// Nothing was recorded for the failed attempt.
	var count int64
	ledger.db.Model(&models.WalletTransaction{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestOverdraftPolicy(t *testing.T) {
	ledger, _ := newLedger(t, LedgerConfig{AllowOverdraft: true})
	seedAccount(t, ledger.db, "5.00")

	res, err := ledger.Apply(context.Background(), betReq("tx-1", "10.00"))
	require.NoError(t, err)
	assertAmount(t, "-5", res.Balance)
}

func TestRefundSafety(t *testing.T) {
	ledger, _ := newLedger(t, LedgerConfig{})
	seedAccount(t, ledger.db, "100.00")
	ctx := context.Background()

	_, err := ledger.Apply(ctx, betReq("tx-bet", "10.00"))
	require.NoError(t, err)

	refund := func(txID string) (*WalletResult, error) {
		return ledger.Apply(ctx, WalletRequest{
			Action:           ActionRefund,
			PlayerID:         "player-1",
			Currency:         "USD",
			TransactionID:    txID,
			BetTransactionID: "tx-bet",
		})
	}

	_, err = refund("tx-refund-1")
	require.NoError(t, err)

	// A second refund of the same bet under a new id is rejected...
	_, err = refund("tx-refund-2")
	assert.ErrorIs(t, err, ErrAlreadyRefunded)

	// ...but replaying the original refund returns the stored result.
	res, err := refund("tx-refund-1")
	require.NoError(t, err)
	assertAmount(t, "100", res.Balance)

	_, err = ledger.Apply(ctx, WalletRequest{
		Action:           ActionRefund,
		PlayerID:         "player-1",
		Currency:         "USD",
		TransactionID:    "tx-refund-3",
		BetTransactionID: "no-such-bet",
	})
	assert.ErrorIs(t, err, ErrUnknownReferencedTx)
}

func TestRefundAmountMismatch(t *testing.T) {
	ledger, _ := newLedger(t, LedgerConfig{})
	seedAccount(t, ledger.db, "100.00")
	ctx := context.Background()

	_, err := ledger.Apply(ctx, betReq("tx-bet", "10.00"))
	require.NoError(t, err)

	_, err = ledger.Apply(ctx, WalletRequest{
		Action:           ActionRefund,
		PlayerID:         "player-1",
		Currency:         "USD",
		TransactionID:    "tx-refund",
		Amount:           decimal.RequireFromString("11.00"),
		BetTransactionID: "tx-bet",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCurrencyPrecision(t *testing.T) {
	ledger, _ := newLedger(t, LedgerConfig{})
	seedAccount(t, ledger.db, "100.00")
	ctx := context.Background()

	_, err := ledger.Apply(ctx, betReq("tx-1", "2.505"))
	assert.ErrorIs(t, err, ErrValidation)

	jpy := betReq("tx-2", "100.50")
	jpy.Currency = "JPY"
	_, err = ledger.Apply(ctx, jpy)
	assert.ErrorIs(t, err, ErrValidation)

	unknown := betReq("tx-3", "1.00")
	unknown.Currency = "XXX"
	_, err = ledger.Apply(ctx, unknown)
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}

func TestBalanceReadOnly(t *testing.T) {
	ledger, _ := newLedger(t, LedgerConfig{})
	ctx := context.Background()

	// Unknown accounts read as zero; nothing is created.
	res, err := ledger.Apply(ctx, WalletRequest{
		Action:   ActionBalance,
		PlayerID: "player-9",
		Currency: "USD",
	})
	require.NoError(t, err)
	assert.True(t, res.Balance.IsZero())

	var count int64
	ledger.db.Model(&models.Account{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestUnfinishedRoundReservesWin(t *testing.T) {
	ledger, _ := newLedger(t, LedgerConfig{})
	seedAccount(t, ledger.db, "100.00")
	ctx := context.Background()
	open := false

	// A win on an open round is credited but held.
	res, err := ledger.Apply(ctx, WalletRequest{
		Action:        ActionWin,
		PlayerID:      "player-1",
		Currency:      "USD",
		TransactionID: "tx-win-1",
		Amount:        decimal.RequireFromString("10.00"),
		RoundID:       "round-open",
		Finished:      &open,
	})
	require.NoError(t, err)
	assertAmount(t, "100", res.Balance)

	bal, err := ledger.Apply(ctx, WalletRequest{
		Action:   ActionBalance,
		PlayerID: "player-1",
		Currency: "USD",
	})
	require.NoError(t, err)
	assertAmount(t, "100", bal.Balance)

	// The finishing event releases the hold.
	res, err = ledger.Apply(ctx, WalletRequest{
		Action:        ActionWin,
		PlayerID:      "player-1",
		Currency:      "USD",
		TransactionID: "tx-win-2",
		Amount:        decimal.RequireFromString("5.00"),
		RoundID:       "round-open",
	})
	require.NoError(t, err)
	assertAmount(t, "115", res.Balance)
}

func TestStaleRoundHoldRelease(t *testing.T) {
	ledger, _ := newLedger(t, LedgerConfig{})
	seedAccount(t, ledger.db, "100.00")
	ctx := context.Background()
	open := false

	_, err := ledger.Apply(ctx, WalletRequest{
		Action:        ActionWin,
		PlayerID:      "player-1",
		Currency:      "USD",
		TransactionID: "tx-win-1",
		Amount:        decimal.RequireFromString("10.00"),
		RoundID:       "round-stale",
		Finished:      &open,
	})
	require.NoError(t, err)

	n, err := ledger.ReleaseStaleRounds(ctx, time.Now().UTC().Add(time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	bal, err := ledger.Apply(ctx, WalletRequest{
		Action:   ActionBalance,
		PlayerID: "player-1",
		Currency: "USD",
	})
	require.NoError(t, err)
	assertAmount(t, "110", bal.Balance)
}

func TestConcurrentBetsApplyExactlyOnce(t *testing.T) {
	ledger, _ := newLedger(t, LedgerConfig{})
	seedAccount(t, ledger.db, "100.00")

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := betReq("tx-concurrent-"+string(rune('a'+i)), "1.00")
			req.RoundID = ""
			_, errs[i] = ledger.Apply(context.Background(), req)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "bet %d", i)
	}

	var acct models.Account
	require.NoError(t, ledger.db.Where("player_id = ?", "player-1").First(&acct).Error)
	assertAmount(t, "80", acct.Balance)
	assert.EqualValues(t, n, acct.Version)

	var count int64
	ledger.db.Model(&models.WalletTransaction{}).Count(&count)
	assert.EqualValues(t, n, count)
}

func TestConcurrentRetriesOfSameTransaction(t *testing.T) {
	ledger, _ := newLedger(t, LedgerConfig{})
	seedAccount(t, ledger.db, "100.00")

	const n = 8
	var wg sync.WaitGroup
	results := make([]*WalletResult, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ledger.Apply(context.Background(), betReq("tx-same", "10.00"))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].TransactionID, results[i].TransactionID)
		assert.True(t, results[0].Balance.Equal(results[i].Balance))
	}

	var acct models.Account
	require.NoError(t, ledger.db.Where("player_id = ?", "player-1").First(&acct).Error)
	assertAmount(t, "90", acct.Balance)
}

func TestExpiredBudgetFailsFast(t *testing.T) {
	ledger, _ := newLedger(t, LedgerConfig{})
	seedAccount(t, ledger.db, "100.00")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ledger.Apply(ctx, betReq("tx-late", "1.00"))
	assert.ErrorIs(t, err, context.Canceled)

	var count int64
	ledger.db.Model(&models.WalletTransaction{}).Count(&count)
	assert.EqualValues(t, 0, count)
}
