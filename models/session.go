package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SessionCreated  = "CREATED"
	SessionLaunched = "LAUNCHED"
	SessionExpired  = "EXPIRED"
	SessionClosed   = "CLOSED"
)

// GameSession is one player's launch context for a single game instance.
// SessionID is assigned by the caller and is the natural key; Payload keeps
// the original create request so duplicate creations can be told apart from
// idempotent retries.
type GameSession struct {
	gorm.Model

	SessionID      string          `gorm:"size:64;uniqueIndex;not null" json:"session_id"`
	GameCode       string          `gorm:"size:64;index" json:"game_id"`
	PlayerID       string          `gorm:"size:64;index" json:"player_id"`
	Currency       string          `gorm:"size:8" json:"currency"`
	InitialBalance decimal.Decimal `gorm:"type:numeric(20,6)" json:"initial_balance"`
	Device         string          `gorm:"size:16" json:"device"`
	Language       string          `gorm:"size:8" json:"language"`
	IsDemo         bool            `json:"is_demo"`
	Status         string          `gorm:"size:16;index" json:"status"`
	LaunchURL      string          `gorm:"size:512" json:"launch_url"`
	Payload        datatypes.JSON  `json:"-"`
	LastActivityAt time.Time       `gorm:"index" json:"last_activity_at"`
}
