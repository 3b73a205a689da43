package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"seamless/models"
)

// Catalog is the read-only game/currency metadata collaborator. The catalog
// subsystem owns the rows; this service only consults them.
type Catalog interface {
	GameByCode(ctx context.Context, code string) (*models.Game, error)
	SupportsCurrency(ctx context.Context, gameCode, currency string) (bool, error)
	CurrencyExponent(ctx context.Context, currency string) (int32, error)
}

type DBCatalog struct {
	db *gorm.DB
}

func NewCatalog(db *gorm.DB) *DBCatalog {
	return &DBCatalog{db: db}
}

func (c *DBCatalog) GameByCode(ctx context.Context, code string) (*models.Game, error) {
	var game models.Game
	err := c.db.WithContext(ctx).Where("code = ?", code).First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownGame, code)
		}
		return nil, fmt.Errorf("game lookup: %w", err)
	}
	if !game.IsEnabled {
		return nil, fmt.Errorf("%w: %s is disabled", ErrUnknownGame, code)
	}
	return &game, nil
}

func (c *DBCatalog) SupportsCurrency(ctx context.Context, gameCode, currency string) (bool, error) {
	var count int64
	err := c.db.WithContext(ctx).Model(&models.GameCurrency{}).
		Joins("JOIN games ON games.id = game_currencies.game_id").
		Where("games.code = ? AND game_currencies.currency_code = ?", gameCode, currency).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("currency support lookup: %w", err)
	}
	return count > 0, nil
}

func (c *DBCatalog) CurrencyExponent(ctx context.Context, currency string) (int32, error) {
	var cur models.Currency
	err := c.db.WithContext(ctx).Where("code = ?", currency).First(&cur).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, currency)
		}
		return 0, fmt.Errorf("currency lookup: %w", err)
	}
	return cur.Exponent, nil
}
