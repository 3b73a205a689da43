package models

import (
	"gorm.io/gorm"
)

// Catalog rows are maintained by the catalog subsystem; this service only
// reads them to validate launches and amounts.

type Game struct {
	gorm.Model

	Code       string         `gorm:"size:64;uniqueIndex;not null" json:"code"`
	Title      string         `gorm:"size:128" json:"title"`
	Provider   string         `gorm:"size:32;index" json:"provider"`
	IsEnabled  bool           `json:"is_enabled"`
	Currencies []GameCurrency `gorm:"foreignKey:GameID" json:"currencies"`
}

// GameCurrency marks a currency a game can be played in.
type GameCurrency struct {
	gorm.Model

	GameID       uint   `gorm:"index:idx_game_currency,unique"`
	CurrencyCode string `gorm:"size:8;index:idx_game_currency,unique"`
}

// Currency carries the precision metadata amounts are validated against.
// Exponent is the number of fractional digits the currency allows. No column
// default: zero is a real exponent (JPY), and a default would swallow it on
// insert.
type Currency struct {
	gorm.Model

	Code     string `gorm:"size:8;uniqueIndex;not null" json:"code"`
	Exponent int32  `json:"exponent"`
}
