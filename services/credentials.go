package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"seamless/models"
)

// CredentialStore resolves the signing secret for an api key.
type CredentialStore interface {
	SecretForKey(ctx context.Context, apiKey string) (string, error)
}

// DBCredentialStore reads credentials from the database and caches hits for
// the process lifetime. Rotation happens out of band via redeploy, so the
// cache never needs invalidation. Secrets are never logged.
type DBCredentialStore struct {
	db *gorm.DB

	mu    sync.RWMutex
	cache map[string]string
}

func NewCredentialStore(db *gorm.DB) *DBCredentialStore {
	return &DBCredentialStore{db: db, cache: map[string]string{}}
}

func (s *DBCredentialStore) SecretForKey(ctx context.Context, apiKey string) (string, error) {
	s.mu.RLock()
	secret, ok := s.cache[apiKey]
	s.mu.RUnlock()
	if ok {
		return secret, nil
	}

	var cred models.Credential
	err := s.db.WithContext(ctx).
		Where("api_key = ? AND is_active = ?", apiKey, true).
		First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUnknownCredential
		}
		return "", fmt.Errorf("credential lookup: %w", err)
	}

	s.mu.Lock()
	s.cache[apiKey] = cred.SecretKey
	s.mu.Unlock()
	return cred.SecretKey, nil
}

// EnsureCredential seeds or refreshes one key pair at startup.
func EnsureCredential(db *gorm.DB, apiKey, secret, label string) error {
	if apiKey == "" || secret == "" {
		return fmt.Errorf("%w: empty api key or secret", ErrValidation)
	}
	var cred models.Credential
	err := db.Where("api_key = ?", apiKey).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Create(&models.Credential{
			APIKey:    apiKey,
			SecretKey: secret,
			Label:     label,
			IsActive:  true,
		}).Error
	}
	if err != nil {
		return err
	}
	cred.SecretKey = secret
	cred.IsActive = true
	return db.Save(&cred).Error
}
