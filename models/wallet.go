package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TxApplied = "APPLIED"
	TxVoided  = "VOIDED"
)

// Account is the authoritative balance row, one per (player, currency).
// Rows are only ever updated, never deleted; Version counts every mutation.
type Account struct {
	gorm.Model

	PlayerID string          `gorm:"size:64;index:idx_player_currency,unique;not null" json:"player_id"`
	Currency string          `gorm:"size:8;index:idx_player_currency,unique;not null" json:"currency"`
	Balance  decimal.Decimal `gorm:"type:numeric(20,6)" json:"balance"`
	Version  int64           `json:"version"`
}

// WalletTransaction records one economic event. TransactionID is the
// caller-assigned idempotency key; PlatformTxID is ours.
type WalletTransaction struct {
	gorm.Model

	TransactionID    string          `gorm:"size:64;uniqueIndex;not null" json:"transaction_id"`
	PlatformTxID     string          `gorm:"size:36;uniqueIndex" json:"platform_transaction_id"`
	SessionID        string          `gorm:"size:64;index" json:"session_id"`
	PlayerID         string          `gorm:"size:64;index" json:"player_id"`
	Currency         string          `gorm:"size:8" json:"currency"`
	Action           string          `gorm:"size:8;index" json:"action"`
	Type             string          `gorm:"size:16" json:"type"`
	Amount           decimal.Decimal `gorm:"type:numeric(20,6)" json:"amount"`
	RoundID          string          `gorm:"size:64;index" json:"round_id"`
	BetTransactionID string          `gorm:"size:64;index" json:"bet_transaction_id"`
	ResultingBalance decimal.Decimal `gorm:"type:numeric(20,6)" json:"resulting_balance"`
	Status           string          `gorm:"size:8;index" json:"status"`
}

// Round is a unit of gameplay that may span several wallet events. While a
// round is unfinished its win credits stay reserved; a finishing event or the
// inactivity timeout releases them.
type Round struct {
	gorm.Model

	RoundID        string          `gorm:"size:64;index:idx_round_account,unique;not null"`
	PlayerID       string          `gorm:"size:64;index:idx_round_account,unique;not null"`
	Currency       string          `gorm:"size:8;index:idx_round_account,unique;not null"`
	SessionID      string          `gorm:"size:64;index"`
	Reserved       decimal.Decimal `gorm:"type:numeric(20,6)"`
	Finished       bool            `gorm:"index"`
	LastActivityAt time.Time       `gorm:"index"`
}
