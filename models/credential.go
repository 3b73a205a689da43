package models

import (
	"gorm.io/gorm"
)

// Credential is one provider↔platform key pair. The secret never leaves the
// row; it only parametrizes request signing and verification.
type Credential struct {
	gorm.Model

	APIKey    string `gorm:"size:64;uniqueIndex;not null" json:"api_key"`
	SecretKey string `gorm:"size:128;not null" json:"-"`
	Label     string `gorm:"size:64" json:"label"`
	IsActive  bool   `json:"is_active"`
}
