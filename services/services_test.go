package services

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"seamless/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Credential{},
		&models.Game{},
		&models.GameCurrency{},
		&models.Currency{},
		&models.GameSession{},
		&models.Account{},
		&models.WalletTransaction{},
		&models.Round{},
	))
	return db
}

func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()

	game := models.Game{Code: "book-of-gophers", Title: "Book of Gophers", Provider: "hosted", IsEnabled: true}
	require.NoError(t, db.Create(&game).Error)
	require.NoError(t, db.Create(&models.GameCurrency{GameID: game.ID, CurrencyCode: "USD"}).Error)
	require.NoError(t, db.Create(&models.GameCurrency{GameID: game.ID, CurrencyCode: "EUR"}).Error)

	disabled := models.Game{Code: "retired-slot", Provider: "hosted", IsEnabled: false}
	require.NoError(t, db.Create(&disabled).Error)

	require.NoError(t, db.Create(&models.Currency{Code: "USD", Exponent: 2}).Error)
	require.NoError(t, db.Create(&models.Currency{Code: "EUR", Exponent: 2}).Error)
	require.NoError(t, db.Create(&models.Currency{Code: "JPY", Exponent: 0}).Error)
}
