package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"seamless/models"
)

// LedgerConfig holds the wallet policy knobs.
type LedgerConfig struct {
	// AllowOverdraft lets a bet push the balance negative. Off by default;
	// some platforms enable it for bonus mechanics.
	AllowOverdraft bool
}

// WalletLedger applies economic operations to accounts exactly once per
// transaction id. Every bet/win/refund for one (player, currency) runs under
// that account's mutex for the whole read-check-write sequence, plus a row
// lock inside the database transaction. Different accounts proceed fully in
// parallel.
type WalletLedger struct {
	db      *gorm.DB
	catalog Catalog
	cfg     LedgerConfig
	locks   sync.Map // account key → *sync.Mutex
}

func NewWalletLedger(db *gorm.DB, catalog Catalog, cfg LedgerConfig) *WalletLedger {
	return &WalletLedger{db: db, catalog: catalog, cfg: cfg}
}

// WalletRequest is one wallet hook after shape validation.
type WalletRequest struct {
	Action           Action
	SessionID        string
	PlayerID         string
	Currency         string
	TransactionID    string
	Amount           decimal.Decimal
	Type             string
	RoundID          string
	Finished         *bool // nil means the round finishes with this event
	BetTransactionID string
}

func (r WalletRequest) roundFinished() bool {
	return r.Finished == nil || *r.Finished
}

// WalletResult is what goes back to the provider: the spendable balance and,
// for economic operations, the platform transaction id.
type WalletResult struct {
	Balance       decimal.Decimal
	TransactionID string
}

// Apply dispatches one wallet operation.
func (l *WalletLedger) Apply(ctx context.Context, req WalletRequest) (*WalletResult, error) {
	if req.PlayerID == "" || req.Currency == "" {
		return nil, fmt.Errorf("%w: player_id and currency are required", ErrValidation)
	}

	switch req.Action {
	case ActionBalance:
		return l.readBalance(ctx, req)
	case ActionBet, ActionWin, ActionRefund:
		return l.applyEconomic(ctx, req)
	case ActionSessionCreate:
		return nil, fmt.Errorf("%w: %s is not a wallet action", ErrValidation, req.Action)
	default:
		return nil, fmt.Errorf("%w: %s is not a wallet action", ErrValidation, req.Action)
	}
}

// readBalance reports the spendable balance: the account balance minus funds
// reserved for open rounds. Not part of the idempotency ledger.
func (l *WalletLedger) readBalance(ctx context.Context, req WalletRequest) (*WalletResult, error) {
	var acct models.Account
	err := l.db.WithContext(ctx).
		Where("player_id = ? AND currency = ?", req.PlayerID, req.Currency).
		First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &WalletResult{Balance: decimal.Zero}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("account lookup: %w", err)
	}
	reserved, err := l.openReserves(l.db.WithContext(ctx), req.PlayerID, req.Currency)
	if err != nil {
		return nil, err
	}
	return &WalletResult{Balance: acct.Balance.Sub(reserved)}, nil
}

func (l *WalletLedger) applyEconomic(ctx context.Context, req WalletRequest) (*WalletResult, error) {
	if req.TransactionID == "" {
		return nil, fmt.Errorf("%w: transaction_id is required for %s", ErrValidation, req.Action)
	}
	if req.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}
	if req.Action == ActionRefund && req.BetTransactionID == "" {
		return nil, fmt.Errorf("%w: bet_transaction_id is required for refund", ErrValidation)
	}

	exponent, err := l.catalog.CurrencyExponent(ctx, req.Currency)
	if err != nil {
		return nil, err
	}
	if !req.Amount.Equal(req.Amount.Truncate(exponent)) {
		return nil, fmt.Errorf("%w: amount %s exceeds %s precision of %d digits",
			ErrValidation, req.Amount, req.Currency, exponent)
	}

	unlock := l.lockAccountKey(req.PlayerID, req.Currency)
	defer unlock()

	// Replays return the stored outcome without touching the account.
	var stored models.WalletTransaction
	err = l.db.WithContext(ctx).
		Where("transaction_id = ?", req.TransactionID).
		First(&stored).Error
	if err == nil {
		return l.replay(&stored, req)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}

	// Fail fast while nothing is mutated yet; the caller retries with the
	// same transaction_id. Once the transaction starts it runs to completion.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dbctx := context.WithoutCancel(ctx)

	var result WalletResult
	err = l.db.WithContext(dbctx).Transaction(func(tx *gorm.DB) error {
		acct, err := l.lockAccountRow(tx, req.PlayerID, req.Currency)
		if err != nil {
			return err
		}

		record := models.WalletTransaction{
			TransactionID:    req.TransactionID,
			PlatformTxID:     strings.ToLower(uuid.New().String()),
			SessionID:        req.SessionID,
			PlayerID:         req.PlayerID,
			Currency:         req.Currency,
			Action:           req.Action.String(),
			Type:             req.Type,
			Amount:           req.Amount,
			RoundID:          req.RoundID,
			BetTransactionID: req.BetTransactionID,
			Status:           models.TxApplied,
		}

		switch req.Action {
		case ActionBet:
			reserved, err := l.openReserves(tx, req.PlayerID, req.Currency)
			if err != nil {
				return err
			}
			spendable := acct.Balance.Sub(reserved)
			if !l.cfg.AllowOverdraft && spendable.LessThan(req.Amount) {
				return fmt.Errorf("%w: %s available, %s requested",
					ErrInsufficientFunds, spendable, req.Amount)
			}
			acct.Balance = acct.Balance.Sub(req.Amount)
		case ActionWin:
			acct.Balance = acct.Balance.Add(req.Amount)
		case ActionRefund:
			amount, err := l.voidBet(tx, &req)
			if err != nil {
				return err
			}
			record.Amount = amount
			acct.Balance = acct.Balance.Add(amount)
		}

		acct.Version++
		if err := tx.Save(acct).Error; err != nil {
			return fmt.Errorf("update account: %w", err)
		}

		if req.RoundID != "" && req.Action != ActionRefund {
			if err := l.touchRound(tx, req); err != nil {
				return err
			}
		}

		reserved, err := l.openReserves(tx, req.PlayerID, req.Currency)
		if err != nil {
			return err
		}
		record.ResultingBalance = acct.Balance.Sub(reserved)

		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}

		if req.SessionID != "" {
			if err := tx.Model(&models.GameSession{}).
				Where("session_id = ?", req.SessionID).
				Update("last_activity_at", time.Now().UTC()).Error; err != nil {
				return fmt.Errorf("touch session: %w", err)
			}
		}

		result = WalletResult{
			Balance:       record.ResultingBalance,
			TransactionID: record.PlatformTxID,
		}
		return nil
	})
	if err != nil {
		// A concurrent replica may have won the unique-index race on
		// transaction_id; resolve against the stored row.
		var again models.WalletTransaction
		if ferr := l.db.WithContext(dbctx).
			Where("transaction_id = ?", req.TransactionID).
			First(&again).Error; ferr == nil {
			return l.replay(&again, req)
		}
		return nil, err
	}
	return &result, nil
}

// replay returns the stored outcome for an already-applied transaction id,
// or a conflict when the retried payload does not match the original.
func (l *WalletLedger) replay(stored *models.WalletTransaction, req WalletRequest) (*WalletResult, error) {
	same := stored.Action == req.Action.String() &&
		stored.PlayerID == req.PlayerID &&
		stored.Currency == req.Currency &&
		stored.BetTransactionID == req.BetTransactionID
	if same && req.Action == ActionRefund {
		// A refund may omit the amount; the stored row carries the bet's.
		same = req.Amount.IsZero() || stored.Amount.Equal(req.Amount)
	} else if same {
		same = stored.Amount.Equal(req.Amount)
	}
	if !same {
		return nil, fmt.Errorf("%w: %s was applied with a different payload",
			ErrTransactionConflict, stored.TransactionID)
	}
	return &WalletResult{
		Balance:       stored.ResultingBalance,
		TransactionID: stored.PlatformTxID,
	}, nil
}

// voidBet validates the referenced bet and flips it APPLIED → VOIDED,
// returning the amount to credit back. Runs under the account lock, so at
// most one refund ever voids a given bet.
func (l *WalletLedger) voidBet(tx *gorm.DB, req *WalletRequest) (decimal.Decimal, error) {
	var bet models.WalletTransaction
	err := tx.Where("transaction_id = ?", req.BetTransactionID).First(&bet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownReferencedTx, req.BetTransactionID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("bet lookup: %w", err)
	}
	if bet.Action != ActionBet.String() ||
		bet.PlayerID != req.PlayerID || bet.Currency != req.Currency {
		return decimal.Zero, fmt.Errorf("%w: %s is not a bet on this account",
			ErrUnknownReferencedTx, req.BetTransactionID)
	}
	if bet.Status == models.TxVoided {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrAlreadyRefunded, req.BetTransactionID)
	}
	if !req.Amount.IsZero() && !req.Amount.Equal(bet.Amount) {
		return decimal.Zero, fmt.Errorf("%w: refund amount %s does not match bet amount %s",
			ErrValidation, req.Amount, bet.Amount)
	}
	if err := tx.Model(&bet).Update("status", models.TxVoided).Error; err != nil {
		return decimal.Zero, fmt.Errorf("void bet: %w", err)
	}
	return bet.Amount, nil
}

// touchRound upserts the round row for a bet or win. Wins credited to an
// unfinished round stay reserved until a finishing event or the hold timeout.
func (l *WalletLedger) touchRound(tx *gorm.DB, req WalletRequest) error {
	round := models.Round{
		RoundID:   req.RoundID,
		PlayerID:  req.PlayerID,
		Currency:  req.Currency,
		SessionID: req.SessionID,
		Reserved:  decimal.Zero,
	}
	err := tx.Where("round_id = ? AND player_id = ? AND currency = ?",
		req.RoundID, req.PlayerID, req.Currency).
		FirstOrCreate(&round).Error
	if err != nil {
		return fmt.Errorf("round lookup: %w", err)
	}

	if !round.Finished {
		if req.Action == ActionWin && !req.roundFinished() {
			round.Reserved = round.Reserved.Add(req.Amount)
		}
		if req.roundFinished() {
			round.Finished = true
			round.Reserved = decimal.Zero
		}
	}
	round.LastActivityAt = time.Now().UTC()
	if err := tx.Save(&round).Error; err != nil {
		return fmt.Errorf("update round: %w", err)
	}
	return nil
}

// ReleaseStaleRounds finishes rounds without activity since the cutoff and
// releases their holds. Driven by the scheduler.
func (l *WalletLedger) ReleaseStaleRounds(ctx context.Context, cutoff time.Time) (int64, error) {
	res := l.db.WithContext(ctx).Model(&models.Round{}).
		Where("finished = ? AND last_activity_at < ?", false, cutoff).
		Updates(map[string]interface{}{
			"finished": true,
			"reserved": decimal.Zero,
		})
	return res.RowsAffected, res.Error
}

func (l *WalletLedger) openReserves(tx *gorm.DB, playerID, currency string) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := tx.Model(&models.Round{}).
		Where("player_id = ? AND currency = ? AND finished = ?", playerID, currency, false).
		Select("SUM(reserved)").
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum reserves: %w", err)
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// lockAccountKey serializes every mutation of one (player, currency) in this
// process. The row lock below covers other replicas.
func (l *WalletLedger) lockAccountKey(playerID, currency string) func() {
	v, _ := l.locks.LoadOrStore(playerID+"|"+currency, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (l *WalletLedger) lockAccountRow(tx *gorm.DB, playerID, currency string) (*models.Account, error) {
	q := tx
	// sqlite (tests) has no SELECT ... FOR UPDATE; the keyed mutex serializes
	// there.
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	acct := models.Account{
		PlayerID: playerID,
		Currency: currency,
		Balance:  decimal.Zero,
	}
	err := q.Where("player_id = ? AND currency = ?", playerID, currency).
		FirstOrCreate(&acct).Error
	if err != nil {
		return nil, fmt.Errorf("lock account: %w", err)
	}
	return &acct, nil
}
