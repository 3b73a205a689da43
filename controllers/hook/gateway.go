package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"seamless/helpers"
	"seamless/services"
)

// ProcessingBudget is the caller's documented timeout. Work that cannot start
// within it fails fast with a retriable status instead of letting the caller
// time out mid-mutation.
const ProcessingBudget = 2 * time.Second

type Handler struct {
	Sessions *services.SessionRegistry
	Ledger   *services.WalletLedger
	validate *validator.Validate
}

func New(sessions *services.SessionRegistry, ledger *services.WalletLedger) *Handler {
	return &Handler{
		Sessions: sessions,
		Ledger:   ledger,
		validate: validator.New(),
	}
}

type envelope struct {
	Action string `json:"action"`
}

type sessionCreateRequest struct {
	SessionID string          `json:"session_id" validate:"required,max=64"`
	GameCode  string          `json:"game_id" validate:"required,max=64"`
	PlayerID  string          `json:"player_id" validate:"required,max=64"`
	Currency  string          `json:"currency" validate:"required,min=3,max=8"`
	Balance   decimal.Decimal `json:"balance"`
	Device    string          `json:"device" validate:"omitempty,oneof=desktop mobile tablet"`
	ReturnURL string          `json:"return_url" validate:"omitempty,url"`
	Language  string          `json:"language" validate:"omitempty,max=8"`
	IsDemo    bool            `json:"is_demo"`
}

type walletHookRequest struct {
	SessionID        string          `json:"session_id" validate:"omitempty,max=64"`
	PlayerID         string          `json:"player_id" validate:"required,max=64"`
	Currency         string          `json:"currency" validate:"required,min=3,max=8"`
	TransactionID    string          `json:"transaction_id" validate:"omitempty,max=64"`
	Amount           decimal.Decimal `json:"amount"`
	Type             string          `json:"type" validate:"omitempty,oneof=bet tip freespin jackpot tournament prize"`
	RoundID          string          `json:"round_id" validate:"omitempty,max=64"`
	Finished         *bool           `json:"finished"`
	BetTransactionID string          `json:"bet_transaction_id" validate:"omitempty,max=64"`
}

// Gateway is the single entry point for signed hooks. The signature
// middleware has already authenticated the raw body; here the action is
// resolved and dispatched.
func (h *Handler) Gateway(c *fiber.Ctx) error {
	raw := c.Body()

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return helpers.HookError(c, fmt.Errorf("%w: malformed json body", services.ErrValidation))
	}
	action, err := services.ParseAction(env.Action)
	if err != nil {
		return helpers.HookError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), ProcessingBudget)
	defer cancel()

	switch action {
	case services.ActionSessionCreate:
		return h.sessionCreate(c, ctx, raw)
	case services.ActionBalance, services.ActionBet, services.ActionWin, services.ActionRefund:
		return h.wallet(c, ctx, action, raw)
	default:
		return helpers.HookError(c, fmt.Errorf("%w: unhandled action", services.ErrValidation))
	}
}

func (h *Handler) sessionCreate(c *fiber.Ctx, ctx context.Context, raw []byte) error {
	var req sessionCreateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return helpers.HookError(c, fmt.Errorf("%w: malformed session-create body", services.ErrValidation))
	}
	if err := h.validate.Struct(req); err != nil {
		return helpers.HookError(c, fmt.Errorf("%w: %v", services.ErrValidation, err))
	}

	sess, err := h.Sessions.Create(ctx, services.CreateSessionInput{
		SessionID: req.SessionID,
		GameCode:  req.GameCode,
		PlayerID:  req.PlayerID,
		Currency:  req.Currency,
		Balance:   req.Balance,
		Device:    req.Device,
		ReturnURL: req.ReturnURL,
		Language:  req.Language,
		IsDemo:    req.IsDemo,
	})
	if err != nil {
		return helpers.HookError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"url": sess.LaunchURL,
	})
}

func (h *Handler) wallet(c *fiber.Ctx, ctx context.Context, action services.Action, raw []byte) error {
	var req walletHookRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return helpers.HookError(c, fmt.Errorf("%w: malformed %s body", services.ErrValidation, action))
	}
	if err := h.validate.Struct(req); err != nil {
		return helpers.HookError(c, fmt.Errorf("%w: %v", services.ErrValidation, err))
	}

	result, err := h.Ledger.Apply(ctx, services.WalletRequest{
		Action:           action,
		SessionID:        req.SessionID,
		PlayerID:         req.PlayerID,
		Currency:         req.Currency,
		TransactionID:    req.TransactionID,
		Amount:           req.Amount,
		Type:             req.Type,
		RoundID:          req.RoundID,
		Finished:         req.Finished,
		BetTransactionID: req.BetTransactionID,
	})
	if err != nil {
		return helpers.HookError(c, err)
	}

	if action == services.ActionBalance {
		return c.JSON(fiber.Map{
			"balance": result.Balance,
		})
	}
	return c.JSON(fiber.Map{
		"balance":        result.Balance,
		"transaction_id": result.TransactionID,
	})
}
