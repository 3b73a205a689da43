package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"seamless/models"
	"seamless/providers"
)

// SessionConfig holds the launch and lifecycle knobs.
type SessionConfig struct {
	LaunchBaseURL string
	IdleTimeout   time.Duration
}

// SessionRegistry owns the session lifecycle:
// CREATED → LAUNCHED → {EXPIRED, CLOSED}.
type SessionRegistry struct {
	db      *gorm.DB
	catalog Catalog
	cfg     SessionConfig
}

func NewSessionRegistry(db *gorm.DB, catalog Catalog, cfg SessionConfig) *SessionRegistry {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	return &SessionRegistry{db: db, catalog: catalog, cfg: cfg}
}

// CreateSessionInput is the caller-supplied launch request. The marshalled
// form is stored on the session for the idempotent-retry comparison.
type CreateSessionInput struct {
	SessionID string          `json:"session_id"`
	GameCode  string          `json:"game_id"`
	PlayerID  string          `json:"player_id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Device    string          `json:"device,omitempty"`
	ReturnURL string          `json:"return_url,omitempty"`
	Language  string          `json:"language,omitempty"`
	IsDemo    bool            `json:"is_demo,omitempty"`
}

// Create registers and launches a session. A retry with the same session_id
// and identical payload returns the previously issued launch URL; a different
// payload under the same id is a conflict. The unique index on session_id
// makes concurrent duplicate creations resolve to a single winner.
func (r *SessionRegistry) Create(ctx context.Context, in CreateSessionInput) (*models.GameSession, error) {
	if in.SessionID == "" || in.GameCode == "" || in.PlayerID == "" || in.Currency == "" {
		return nil, fmt.Errorf("%w: session_id, game_id, player_id and currency are required", ErrValidation)
	}
	if in.Balance.IsNegative() {
		return nil, fmt.Errorf("%w: balance must not be negative", ErrValidation)
	}

	game, err := r.catalog.GameByCode(ctx, in.GameCode)
	if err != nil {
		return nil, err
	}
	supported, err := r.catalog.SupportsCurrency(ctx, in.GameCode, in.Currency)
	if err != nil {
		return nil, err
	}
	if !supported {
		return nil, fmt.Errorf("%w: %s does not support %s", ErrUnsupportedCurrency, in.GameCode, in.Currency)
	}

	snapshot, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("snapshot payload: %w", err)
	}

	if existing, err := r.findExisting(ctx, in.SessionID, snapshot); existing != nil || err != nil {
		return existing, err
	}

	launchURL, err := r.buildLaunchURL(game.Provider, in)
	if err != nil {
		return nil, fmt.Errorf("build launch url: %w", err)
	}

	now := time.Now().UTC()
	sess := models.GameSession{
		SessionID:      in.SessionID,
		GameCode:       in.GameCode,
		PlayerID:       in.PlayerID,
		Currency:       in.Currency,
		InitialBalance: in.Balance,
		Device:         in.Device,
		Language:       in.Language,
		IsDemo:         in.IsDemo,
		Status:         models.SessionCreated,
		LaunchURL:      launchURL,
		Payload:        snapshot,
		LastActivityAt: now,
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&sess).Error; err != nil {
			return err
		}
		// Seed the wallet account with the reported opening balance. Existing
		// accounts are left untouched; the ledger is authoritative after that.
		acct := models.Account{
			PlayerID: in.PlayerID,
			Currency: in.Currency,
			Balance:  in.Balance,
		}
		if err := tx.Where("player_id = ? AND currency = ?", in.PlayerID, in.Currency).
			FirstOrCreate(&acct).Error; err != nil {
			return err
		}
		return tx.Model(&sess).Update("status", models.SessionLaunched).Error
	})
	if err != nil {
		// Lost the create race: the unique index rejected us, so resolve
		// against the winner's row.
		if existing, ferr := r.findExisting(ctx, in.SessionID, snapshot); existing != nil || ferr != nil {
			return existing, ferr
		}
		return nil, fmt.Errorf("create session: %w", err)
	}
	sess.Status = models.SessionLaunched
	return &sess, nil
}

func (r *SessionRegistry) findExisting(ctx context.Context, sessionID string, snapshot []byte) (*models.GameSession, error) {
	var existing models.GameSession
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	if !bytes.Equal(existing.Payload, snapshot) {
		return nil, fmt.Errorf("%w: session %s exists with a different payload", ErrSessionConflict, sessionID)
	}
	return &existing, nil
}

func (r *SessionRegistry) buildLaunchURL(provider string, in CreateSessionInput) (string, error) {
	launcher := providers.Get(provider)
	if launcher == nil {
		launcher = providers.HostedLauncher{BaseURL: r.cfg.LaunchBaseURL}
	}
	u, err := launcher.LaunchURL(providers.LaunchParams{
		SessionID: in.SessionID,
		Token:     strings.ToLower(uuid.New().String()),
		GameCode:  in.GameCode,
		PlayerID:  in.PlayerID,
		Currency:  in.Currency,
		Language:  in.Language,
		Device:    in.Device,
		Demo:      in.IsDemo,
		ReturnURL: in.ReturnURL,
	})
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	}
	return u, nil
}

// Get returns the session for a caller-assigned id.
func (r *SessionRegistry) Get(ctx context.Context, sessionID string) (*models.GameSession, error) {
	var sess models.GameSession
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	return &sess, nil
}

// Close terminates a launched session explicitly. Terminal sessions stay put.
func (r *SessionRegistry) Close(ctx context.Context, sessionID string) error {
	return r.transition(ctx, sessionID, models.SessionClosed)
}

// Expire transitions one idle session; the scheduler normally drives this in
// bulk through ExpireIdle.
func (r *SessionRegistry) Expire(ctx context.Context, sessionID string) error {
	return r.transition(ctx, sessionID, models.SessionExpired)
}

func (r *SessionRegistry) transition(ctx context.Context, sessionID, to string) error {
	res := r.db.WithContext(ctx).Model(&models.GameSession{}).
		Where("session_id = ? AND status = ?", sessionID, models.SessionLaunched).
		Update("status", to)
	if res.Error != nil {
		return fmt.Errorf("session transition: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		sess, err := r.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: session %s is %s", ErrSessionConflict, sessionID, sess.Status)
	}
	return nil
}

// ExpireIdle expires every launched session without wallet activity since the
// cutoff. Called by the scheduler, not by inbound hook traffic.
func (r *SessionRegistry) ExpireIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.GameSession{}).
		Where("status = ? AND last_activity_at < ?", models.SessionLaunched, cutoff).
		Update("status", models.SessionExpired)
	return res.RowsAffected, res.Error
}

// IdleTimeout exposes the configured inactivity window to the scheduler.
func (r *SessionRegistry) IdleTimeout() time.Duration {
	return r.cfg.IdleTimeout
}
